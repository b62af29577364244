package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theauditor/loremshelf/domain"
)

func TestValidateShippingForm_Valid(t *testing.T) {
	svc := &Service{validate: newValidator()}

	assert.Nil(t, svc.ValidateShippingForm(validForm))

	noLandmark := validForm
	noLandmark.Landmark = ""
	assert.Nil(t, svc.ValidateShippingForm(noLandmark))
}

func TestValidateShippingForm_CollectsAllErrorsInFormOrder(t *testing.T) {
	svc := &Service{validate: newValidator()}

	verr := svc.ValidateShippingForm(domain.ShippingForm{})
	require.NotNil(t, verr)

	var fields []string
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"email", "firstName", "lastName", "address", "city", "state", "pincode", "phone"}, fields)
	assert.Equal(t, "Email is required", verr.Fields[0].Message)
	assert.Equal(t, []domain.Effect{domain.FocusField("email")}, verr.Effects())
}

func TestValidateShippingForm_FieldRules(t *testing.T) {
	svc := &Service{validate: newValidator()}

	tests := []struct {
		name    string
		mutate  func(f *domain.ShippingForm)
		field   string
		message string
	}{
		{"bad email", func(f *domain.ShippingForm) { f.Email = "asha@" }, "email", "Enter a valid email address"},
		{"blank first name", func(f *domain.ShippingForm) { f.FirstName = "   " }, "firstName", "First name is required"},
		{"unknown state", func(f *domain.ShippingForm) { f.State = "Atlantis" }, "state", "Select a state from the list"},
		{"short pincode", func(f *domain.ShippingForm) { f.Pincode = "5600" }, "pincode", "Pincode must be 6 digits"},
		{"letters in pincode", func(f *domain.ShippingForm) { f.Pincode = "56000a" }, "pincode", "Pincode must be 6 digits"},
		{"signed phone", func(f *domain.ShippingForm) { f.Phone = "+987654321" }, "phone", "Phone number must be 10 digits"},
		{"long phone", func(f *domain.ShippingForm) { f.Phone = "98765432100" }, "phone", "Phone number must be 10 digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm
			tt.mutate(&form)

			verr := svc.ValidateShippingForm(form)
			require.NotNil(t, verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.Equal(t, tt.message, verr.Fields[0].Message)
		})
	}
}

func TestValidateShippingForm_TrimsBeforeChecking(t *testing.T) {
	svc := &Service{validate: newValidator()}

	form := validForm
	form.Pincode = " 560001 "
	form.Email = " asha@example.com"
	assert.Nil(t, svc.ValidateShippingForm(form))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{{Field: "pincode"}, {Field: "phone"}}}
	assert.Equal(t, "invalid shipping form: pincode, phone", err.Error())
}
