package domain

import "strings"

type ShippingForm struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Address   string `json:"address" validate:"required"`
	Landmark  string `json:"landmark"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required,region"`
	Pincode   string `json:"pincode" validate:"required,len=6,digits"`
	Phone     string `json:"phone" validate:"required,len=10,digits"`
}

func (f ShippingForm) FullName() string {
	return strings.TrimSpace(f.FirstName + " " + f.LastName)
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (f ShippingForm) Trimmed() ShippingForm {
	return ShippingForm{
		Email:     strings.TrimSpace(f.Email),
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Address:   strings.TrimSpace(f.Address),
		Landmark:  strings.TrimSpace(f.Landmark),
		City:      strings.TrimSpace(f.City),
		State:     strings.TrimSpace(f.State),
		Pincode:   strings.TrimSpace(f.Pincode),
		Phone:     strings.TrimSpace(f.Phone),
	}
}

// Regions lists the Indian states and union territories accepted as State.
var Regions = []string{
	"Andaman and Nicobar Islands",
	"Andhra Pradesh",
	"Arunachal Pradesh",
	"Assam",
	"Bihar",
	"Chandigarh",
	"Chhattisgarh",
	"Dadra and Nagar Haveli and Daman and Diu",
	"Delhi",
	"Goa",
	"Gujarat",
	"Haryana",
	"Himachal Pradesh",
	"Jammu and Kashmir",
	"Jharkhand",
	"Karnataka",
	"Kerala",
	"Ladakh",
	"Lakshadweep",
	"Madhya Pradesh",
	"Maharashtra",
	"Manipur",
	"Meghalaya",
	"Mizoram",
	"Nagaland",
	"Odisha",
	"Puducherry",
	"Punjab",
	"Rajasthan",
	"Sikkim",
	"Tamil Nadu",
	"Telangana",
	"Tripura",
	"Uttar Pradesh",
	"Uttarakhand",
	"West Bengal",
}

func IsRegion(s string) bool {
	for _, r := range Regions {
		if r == s {
			return true
		}
	}
	return false
}
