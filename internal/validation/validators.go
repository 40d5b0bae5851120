// Package validation validates domain entities before they are
// persisted or acted on. Struct-tag rules are handled by
// go-playground/validator; rules that span multiple fields (and so
// can't be expressed as a single tag) are written by hand alongside it.
package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// Validator wraps a configured validator.Validate instance.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with domain-specific tag validators
// registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("schedule_frequency", validateScheduleFrequency)
	_ = v.RegisterValidation("binding", validateBinding)
	return &Validator{v: v}
}

func validateScheduleFrequency(fl validator.FieldLevel) bool {
	switch domain.ScheduleFrequency(fl.Field().String()) {
	case domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly:
		return true
	default:
		return false
	}
}

func validateBinding(fl validator.FieldLevel) bool {
	switch domain.Binding(fl.Field().String()) {
	case domain.BindingPlatform, domain.BindingCrossPlatform, domain.BindingResearch, domain.BindingHybrid:
		return true
	default:
		return false
	}
}

// ValidateTypeClassification checks a deliverable's type classification,
// including the cross-field rule that a platform_bound deliverable must
// name exactly one primary platform, while cross_platform, research and
// hybrid deliverables must not.
func (val *Validator) ValidateTypeClassification(tc domain.TypeClassification) error {
	if tc.Binding == "" {
		return fmt.Errorf("binding is required")
	}
	switch tc.Binding {
	case domain.BindingPlatform, domain.BindingCrossPlatform, domain.BindingResearch, domain.BindingHybrid:
	default:
		return fmt.Errorf("binding must be one of platform_bound, cross_platform, research, hybrid")
	}

	switch tc.Binding {
	case domain.BindingPlatform:
		if tc.PrimaryPlatform == "" {
			return fmt.Errorf("primary_platform is required when binding is platform_bound")
		}
	default:
		if tc.PrimaryPlatform != "" {
			return fmt.Errorf("primary_platform must be empty unless binding is platform_bound")
		}
	}

	if tc.FreshnessRequirementHrs < 0 {
		return fmt.Errorf("freshness_requirement_hrs must not be negative")
	}
	return nil
}

// ValidateSchedule checks a deliverable's schedule block.
func (val *Validator) ValidateSchedule(s domain.Schedule) error {
	switch s.Frequency {
	case domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly:
	default:
		return fmt.Errorf("frequency must be one of daily, weekly, monthly")
	}
	if s.Frequency == domain.FrequencyWeekly && s.Day == "" {
		return fmt.Errorf("day is required when frequency is weekly")
	}
	if s.Frequency == domain.FrequencyMonthly && s.Day == "" {
		return fmt.Errorf("day is required when frequency is monthly")
	}
	if s.Time == "" {
		return fmt.Errorf("time is required")
	}
	if s.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	return nil
}

// ValidateDestination checks a deliverable's delivery destination.
func (val *Validator) ValidateDestination(d domain.Destination) error {
	switch d.Platform {
	case domain.PlatformSlack, domain.PlatformGmail, domain.PlatformNotion, domain.PlatformCalendar:
	default:
		return fmt.Errorf("platform must be a supported destination platform")
	}
	if d.Target == "" {
		return fmt.Errorf("target is required")
	}
	return nil
}

// ValidateDeliverable runs struct-tag validation plus all cross-field
// rules for a Deliverable. It fails fast on the first violation found,
// checking in the same order a reviewer would: identity, then
// classification, then schedule, then destination.
func (val *Validator) ValidateDeliverable(d domain.Deliverable) error {
	if d.Title == "" {
		return fmt.Errorf("title is required")
	}
	if d.DeliverableType == "" {
		return fmt.Errorf("deliverable_type is required")
	}
	if err := val.ValidateTypeClassification(d.TypeClassification); err != nil {
		return fmt.Errorf("type_classification invalid: %w", err)
	}
	if d.TriggerType == domain.TriggerSchedule {
		if err := val.ValidateSchedule(d.Schedule); err != nil {
			return fmt.Errorf("schedule invalid: %w", err)
		}
	}
	if err := val.ValidateDestination(d.Destination); err != nil {
		return fmt.Errorf("destination invalid: %w", err)
	}
	if len(d.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	return nil
}
