package utils

import (
	"regexp"
	"unicode/utf8"
)

const MinPasswordLength = 8

var (
	emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

	upperPattern   = regexp.MustCompile(`[A-Z]`)
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	digitPattern   = regexp.MustCompile(`[0-9]`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// ValidationError is a user-correctable input problem. No state is mutated
// when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidEmail applies a deliberately loose local@domain.tld pattern.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

type passwordRule struct {
	pattern *regexp.Regexp
	message string
}

var passwordRules = []passwordRule{
	{upperPattern, "Password must contain at least one uppercase letter"},
	{lowerPattern, "Password must contain at least one lowercase letter"},
	{digitPattern, "Password must contain at least one digit"},
	{specialPattern, "Password must contain at least one special character"},
}

// IsStrongPassword reports the first unmet strength rule, checked in a fixed order.
func IsStrongPassword(password string) (bool, string) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return false, "Password must be at least 8 characters long"
	}
	for _, rule := range passwordRules {
		if !rule.pattern.MatchString(password) {
			return false, rule.message
		}
	}
	return true, "Password is strong"
}
