package wizard

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a user-correctable reason a step cannot be left or a save
// cannot start.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStep returns nil if the current step may be left forward.
func ValidateStep(s State, policy CapacityPolicy) error {
	var verr *ValidationError
	switch s.CurrentStep {
	case StepSelectRecipients:
		verr = validateSelection(s)
	case StepGroupCouriers:
		if s.AssignmentMode == ModeManual {
			verr = validateManualGroups(s)
		} else {
			verr = validateCouriers(s, policy)
		}
	case StepPreview:
		verr = validateRoutes(s)
	}
	if verr != nil {
		return verr
	}
	return nil
}

// ValidateSave checks the metadata form and the routes that would be persisted.
func ValidateSave(s State) error {
	meta := s.AssignmentMetadata
	meta.AssignmentName = strings.TrimSpace(meta.AssignmentName)
	if err := validate.Struct(meta); err != nil {
		return metadataError(err)
	}
	if verr := validateRoutes(s); verr != nil {
		return verr
	}
	return nil
}

func metadataError(err error) *ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalid("assignmentMetadata", "%v", err)
	}
	fe := fieldErrs[0]
	field := "assignmentMetadata." + fe.Field()
	switch fe.Tag() {
	case "required":
		return invalid(field, "%s is required", fe.Field())
	case "datetime":
		return invalid(field, "%s must be a date in YYYY-MM-DD format", fe.Field())
	}
	return invalid(field, "%s failed %s validation", fe.Field(), fe.Tag())
}

func validateSelection(s State) *ValidationError {
	if len(s.SelectedRecipientIDs) == 0 {
		return invalid("selectedRecipientIds", "select at least one recipient")
	}
	if s.AssignmentMode == ModeAutomatic && (s.CapacityPerCourier == nil || *s.CapacityPerCourier <= 0) {
		return invalid("capacityPerCourier", "capacity per courier must be a positive integer")
	}
	return nil
}

func validateManualGroups(s State) *ValidationError {
	if len(s.ManualGroups) == 0 {
		return invalid("manualGroups", "create at least one group")
	}
	if n := len(UnassignedRecipientIDs(s)); n > 0 {
		return invalid("manualGroups", "%d recipients are not in any group", n)
	}
	for _, g := range s.ManualGroups {
		if len(g.RecipientIDs) == 0 {
			return invalid("manualGroups", "group %q has no recipients", g.Name)
		}
	}
	for _, g := range s.ManualGroups {
		if g.CourierID == "" {
			return invalid("manualGroups", "group %q has no courier", g.Name)
		}
	}
	return nil
}

func validateCouriers(s State, policy CapacityPolicy) *ValidationError {
	if len(s.SelectedCourierIDs) == 0 {
		return invalid("selectedCourierIds", "select at least one courier")
	}
	if s.CapacityPerCourier == nil || *s.CapacityPerCourier <= 0 {
		return invalid("capacityPerCourier", "capacity per courier must be a positive integer")
	}
	if d := ComputeDistribution(s); policy.Blocks() && !d.IsCapacitySufficient {
		return invalid("capacityPerCourier", "%s", d.Shortfall())
	}
	return nil
}

func validateRoutes(s State) *ValidationError {
	nonEmpty := 0
	for _, a := range s.Assignments {
		if len(a.RecipientIDs) == 0 {
			continue
		}
		nonEmpty++
		if a.CourierID == "" {
			return invalid("assignments", "route %q has no courier", a.Name)
		}
	}
	if nonEmpty == 0 {
		return invalid("assignments", "at least one route must contain recipients")
	}
	return nil
}
