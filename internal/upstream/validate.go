package upstream

import (
	"regexp"
	"unicode"
)

// emailPattern matches the shape user@host.tld; it intentionally mirrors
// the permissive check the operators are used to rather than full RFC 5322.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 6

// ValidateEmail checks the email shape. A failure never reaches the
// network.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "malformed address"}
	}
	return nil
}

// ValidatePassword requires at least six characters including a lowercase
// letter, an uppercase letter, a digit, and a symbol. Go's regexp has no
// lookahead, so the classes are checked individually.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return &ValidationError{Field: "password", Reason: "too short"}
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	switch {
	case !lower:
		return &ValidationError{Field: "password", Reason: "needs a lowercase letter"}
	case !upper:
		return &ValidationError{Field: "password", Reason: "needs an uppercase letter"}
	case !digit:
		return &ValidationError{Field: "password", Reason: "needs a digit"}
	case !symbol:
		return &ValidationError{Field: "password", Reason: "needs a symbol"}
	}
	return nil
}
