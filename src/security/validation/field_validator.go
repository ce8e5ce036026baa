package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxSymbolLength        = 64
	MaxDescriptionLength   = 1024
	MaxStrategyRulesLength = 4000
	MinPasswordLength      = 8
	MaxStartingCash        = 1e12
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

// ValidateDateString checks if a string is a valid date in "YYYY-MM-DD" format.
func ValidateDateString(s, fieldName string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is not a valid date (expected YYYY-MM-DD): %v", ErrValidationFailed, fieldName, s, err)
	}
	return t, nil
}

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,50}$`)
)

// ValidateSymbol checks a trade key. Keys are compared byte for byte with the
// imported symbol, so any printable text is accepted: "spy", "M&M",
// "T 4 1/2 11/15/33".
func ValidateSymbol(s string) error {
	if err := ValidateStringNotEmpty(strings.TrimSpace(s), "symbol"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(s, MaxSymbolLength, "symbol"); err != nil {
		return err
	}
	if StripUnprintable(s) != s || strings.ContainsAny(s, "\t\r\n") {
		return fmt.Errorf("%w: symbol contains control characters", ErrValidationFailed)
	}
	return nil
}

// ValidateAmount rejects NaN and infinities.
func ValidateAmount(v float64, fieldName string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStartingCash checks a partition baseline.
func ValidateStartingCash(v float64) error {
	if err := ValidateAmount(v, "starting_cash"); err != nil {
		return err
	}
	if v < 0 || v > MaxStartingCash {
		return fmt.Errorf("%w: starting_cash must be between 0 and %.0f", ErrValidationFailed, float64(MaxStartingCash))
	}
	return nil
}

func ValidateEmail(s string) error {
	if err := ValidateStringMaxLength(s, DefaultMaxStringLength, "email"); err != nil {
		return err
	}
	return ValidateStringRegex(strings.TrimSpace(s), emailRegex, "email", "name@domain.tld")
}

func ValidateUsername(s string) error {
	return ValidateStringRegex(s, usernameRegex, "username", "3-50 letters, digits, '_', '.' or '-'")
}

func ValidatePassword(s string) error {
	if utf8.RuneCountInString(s) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrValidationFailed, MinPasswordLength)
	}
	return ValidateStringMaxLength(s, 72, "password") // bcrypt input limit
}
