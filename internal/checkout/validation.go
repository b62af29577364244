package checkout

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/theauditor/loremshelf/domain"
)

var digitLengths = map[string]string{
	"pincode": "6",
	"phone":   "10",
}

var fieldLabels = map[string]string{
	"email":     "Email",
	"firstName": "First name",
	"lastName":  "Last name",
	"address":   "Address",
	"city":      "City",
	"state":     "State",
	"pincode":   "Pincode",
	"phone":     "Phone number",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("region", func(fl validator.FieldLevel) bool {
		return domain.IsRegion(fl.Field().String())
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return s != ""
	})
	return v
}

// ValidateShippingForm checks the trimmed form and returns every field error,
// or nil when the form may advance to payment.
func (s *Service) ValidateShippingForm(form domain.ShippingForm) *ValidationError {
	err := s.validate.Struct(form.Trimmed())
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: []FieldError{{Field: "form", Message: err.Error()}}}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Enter a valid email address"
	case "region":
		return "Select a state from the list"
	case "len", "digits":
		if n, ok := digitLengths[fe.Field()]; ok {
			return label + " must be " + n + " digits"
		}
		return label + " is invalid"
	default:
		return label + " is invalid"
	}
}
