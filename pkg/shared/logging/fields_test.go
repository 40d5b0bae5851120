package logging

import (
	"errors"
	"testing"
	"time"
)

func TestNewFields(t *testing.T) {
	fields := NewFields()
	if fields == nil {
		t.Fatal("NewFields() returned nil")
	}
	if len(fields) != 0 {
		t.Errorf("NewFields() should be empty, got %d fields", len(fields))
	}
}

func TestFields_Component(t *testing.T) {
	fields := NewFields().Component("contentcache")
	if fields["component"] != "contentcache" {
		t.Errorf("Component() = %v, want %v", fields["component"], "contentcache")
	}
}

func TestFields_Operation(t *testing.T) {
	fields := NewFields().Operation("upsert_items")
	if fields["operation"] != "upsert_items" {
		t.Errorf("Operation() = %v, want %v", fields["operation"], "upsert_items")
	}
}

func TestFields_Resource(t *testing.T) {
	fields := NewFields().Resource("slack_channel", "#eng")
	if fields["resource_type"] != "slack_channel" {
		t.Errorf("resource_type = %v, want slack_channel", fields["resource_type"])
	}
	if fields["resource_name"] != "#eng" {
		t.Errorf("resource_name = %v, want #eng", fields["resource_name"])
	}
}

func TestFields_ResourceWithoutName(t *testing.T) {
	fields := NewFields().Resource("slack_channel", "")
	if _, exists := fields["resource_name"]; exists {
		t.Error("Resource() should not set resource_name when empty")
	}
}

func TestFields_Duration(t *testing.T) {
	fields := NewFields().Duration(150 * time.Millisecond)
	if fields["duration_ms"] != int64(150) {
		t.Errorf("duration_ms = %v, want 150", fields["duration_ms"])
	}
}

func TestFields_Err(t *testing.T) {
	fields := NewFields().Err(errors.New("boom"))
	if fields["error"] != "boom" {
		t.Errorf("error = %v, want boom", fields["error"])
	}

	fields = NewFields().Err(nil)
	if _, exists := fields["error"]; exists {
		t.Error("Err(nil) should not set error key")
	}
}

func TestFields_ZapFields_Deterministic(t *testing.T) {
	fields := NewFields().Component("c").Operation("o").Count("n", 3)
	a := fields.ZapFields()
	b := fields.ZapFields()
	if len(a) != len(b) {
		t.Fatalf("ZapFields() length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Key != b[i].Key {
			t.Errorf("ZapFields() not deterministic at %d: %s vs %s", i, a[i].Key, b[i].Key)
		}
	}
}
