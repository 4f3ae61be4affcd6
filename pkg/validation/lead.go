package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/dealership-quote/pkg/datetime"
)

const (
	minPhoneDigits = 9
	maxPhoneDigits = 11
)

// FieldError reports a lead field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateLead checks the minimum contact details a lead needs before it is
// accepted: a name and a reachable phone number.
func ValidateLead(name, phone string) error {
	if strings.TrimSpace(name) == "" {
		return &FieldError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(phone) == "" {
		return &FieldError{Field: "phone", Reason: "must not be empty"}
	}
	if _, err := NormalizePhone(phone); err != nil {
		return err
	}
	return nil
}

// NormalizePhone strips separators and rewrites the +84 country prefix to a
// leading 0, e.g. "+84 912.345.678" becomes "0912345678".
func NormalizePhone(phone string) (string, error) {
	trimmed := strings.TrimSpace(phone)
	var digits strings.Builder
	for i, r := range trimmed {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '.' || r == '-' || r == '(' || r == ')':
		default:
			return "", &FieldError{Field: "phone", Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}

	normalized := digits.String()
	if strings.HasPrefix(trimmed, "+84") {
		normalized = "0" + strings.TrimPrefix(normalized, "84")
	}
	if len(normalized) < minPhoneDigits || len(normalized) > maxPhoneDigits {
		return "", &FieldError{Field: "phone", Reason: fmt.Sprintf("must have %d to %d digits", minPhoneDigits, maxPhoneDigits)}
	}
	return normalized, nil
}

// ValidateEmail accepts an empty address or a single RFC 5322 address.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &FieldError{Field: "email", Reason: "not a valid address"}
	}
	return nil
}

// ValidateBookingDate parses a test-drive date and rejects days in the past.
func ValidateBookingDate(day string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(day) == "" {
		return time.Time{}, &FieldError{Field: "preferredDate", Reason: "must not be empty for a test drive"}
	}
	t, err := datetime.ParseDay(strings.TrimSpace(day))
	if err != nil {
		return time.Time{}, &FieldError{Field: "preferredDate", Reason: err.Error()}
	}
	if datetime.DayBefore(t, now) {
		return time.Time{}, &FieldError{Field: "preferredDate", Reason: "must not be in the past"}
	}
	return t, nil
}
