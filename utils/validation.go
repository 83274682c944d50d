package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldValidationError represents a validation error for a specific field
type FieldValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldValidationErrors represents multiple field validation errors
type FieldValidationErrors []FieldValidationError

// Error implements the error interface
func (e FieldValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

var (
	phoneRegex       = regexp.MustCompile(`^[0-9]{10}$`)
	postalCodeRegex  = regexp.MustCompile(`^[0-9]{6}$`)
	fullNameRegex    = regexp.MustCompile(`^[a-zA-Z\s.'\-]+$`)
	addressLineRegex = regexp.MustCompile(`^[a-zA-Z0-9\s,.'#\-/()]+$`)
	placeRegex       = regexp.MustCompile(`^[a-zA-Z\s.\-]+$`)
	couponCodeRegex  = regexp.MustCompile(`^[A-Z0-9_\-]{3,32}$`)
)

// ValidateAddressFields validates a delivery address. Every field except the
// landmark is required.
func ValidateAddressFields(fullName, phone, line, landmark, city, state, postalCode string) FieldValidationErrors {
	errs := FieldValidationErrors{}

	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		errs = append(errs, FieldValidationError{"full_name", "Full name is required"})
	} else {
		if len(fullName) > 100 {
			errs = append(errs, FieldValidationError{"full_name", "Full name must not exceed 100 characters"})
		}
		if !fullNameRegex.MatchString(fullName) {
			errs = append(errs, FieldValidationError{"full_name", "Full name contains invalid characters"})
		}
	}

	phone = strings.TrimSpace(phone)
	if phone == "" {
		errs = append(errs, FieldValidationError{"phone", "Contact number is required"})
	} else if !phoneRegex.MatchString(phone) {
		errs = append(errs, FieldValidationError{"phone", ErrInvalidPhone})
	}

	line = strings.TrimSpace(line)
	if line == "" {
		errs = append(errs, FieldValidationError{"line", "Address line is required"})
	} else {
		if len(line) > 200 {
			errs = append(errs, FieldValidationError{"line", "Address line must not exceed 200 characters"})
		}
		if !addressLineRegex.MatchString(line) {
			errs = append(errs, FieldValidationError{"line", "Address line contains invalid characters"})
		}
	}

	landmark = strings.TrimSpace(landmark)
	if len(landmark) > 100 {
		errs = append(errs, FieldValidationError{"landmark", "Landmark must not exceed 100 characters"})
	} else if landmark != "" && !addressLineRegex.MatchString(landmark) {
		errs = append(errs, FieldValidationError{"landmark", "Landmark contains invalid characters"})
	}

	city = strings.TrimSpace(city)
	if city == "" {
		errs = append(errs, FieldValidationError{"city", "City is required"})
	} else if len(city) > 100 || !placeRegex.MatchString(city) {
		errs = append(errs, FieldValidationError{"city", "City must only contain letters and spaces"})
	}

	state = strings.TrimSpace(state)
	if state == "" {
		errs = append(errs, FieldValidationError{"state", "State is required"})
	} else if len(state) > 100 || !placeRegex.MatchString(state) {
		errs = append(errs, FieldValidationError{"state", "State must only contain letters and spaces"})
	}

	postalCode = strings.TrimSpace(postalCode)
	if postalCode == "" {
		errs = append(errs, FieldValidationError{"postal_code", "Postal code is required"})
	} else if !postalCodeRegex.MatchString(postalCode) {
		errs = append(errs, FieldValidationError{"postal_code", ErrInvalidPostalCode})
	}

	return errs
}

// ValidateCouponCode checks the shape of an already normalized coupon code
func ValidateCouponCode(code string) error {
	if code == "" {
		return ValidationError("Coupon code is required", nil)
	}
	if !couponCodeRegex.MatchString(code) {
		return ValidationError("Coupon code format is invalid", []FieldValidationError{{"code", "Use 3-32 letters, digits, '-' or '_'"}})
	}
	return nil
}
