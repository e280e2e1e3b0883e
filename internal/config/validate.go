package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldsError lists the config fields that failed validation.
type FieldsError struct {
	Section string
	Fields  []string
}

func (e *FieldsError) Error() string {
	return fmt.Sprintf("%s config invalid: %s", e.Section, strings.Join(e.Fields, ", "))
}

// ValidateCommerce checks that the commerce credentials are present.
func ValidateCommerce(c CommerceConfig) error {
	return validateSection("commerce", c)
}

// ValidateNotification checks that the notification vendor settings are present.
func ValidateNotification(c NotificationConfig) error {
	return validateSection("notification", c)
}

// ValidateBootstrap checks the policy values.
func ValidateBootstrap(c BootstrapConfig) error {
	return validateSection("bootstrap", c)
}

func validateSection(section string, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating %s config: %w", section, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return &FieldsError{Section: section, Fields: fields}
}
