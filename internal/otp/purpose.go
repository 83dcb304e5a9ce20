package otp

import "fmt"

// Purpose partitions otherwise-identical recipients into separate
// verification state: a login code cannot confirm a signup and vice versa.
type Purpose string

const (
	PurposeLogin  Purpose = "login"
	PurposeSignup Purpose = "signup"
)

// ParsePurpose validates a purpose received from the HTTP boundary.
func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(s) {
	case PurposeLogin, PurposeSignup:
		return Purpose(s), nil
	default:
		return "", fmt.Errorf("unknown purpose: %q", s)
	}
}

func (p Purpose) String() string {
	return string(p)
}
