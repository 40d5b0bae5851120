// Package logging provides a small Fields builder chained into zap
// structured-logging calls, so call sites read as a sentence
// ("Component(...).Operation(...).Duration(d)") instead of a flat
// zap.Field slice.
package logging

import "time"

// Fields is an ordered set of structured logging key/value pairs.
type Fields map[string]any

// NewFields returns an empty Fields set.
func NewFields() Fields {
	return Fields{}
}

// Component records which subsystem emitted the log line.
func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

// Operation records the action being performed.
func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

// Resource records the type and, if known, name of the resource the
// operation concerns. An empty name is omitted rather than recorded.
func (f Fields) Resource(kind, name string) Fields {
	f["resource_type"] = kind
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

// Duration records how long the operation took.
func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

// UserID records the acting user.
func (f Fields) UserID(id string) Fields {
	f["user_id"] = id
	return f
}

// Err records an error's message under a standard key.
func (f Fields) Err(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

// Count records an integer count under a named key.
func (f Fields) Count(key string, n int) Fields {
	f[key] = n
	return f
}
