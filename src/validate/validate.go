// Package validate holds the field checks shared by the account, article and
// upload forms. Checks return a Status instead of touching any markup; the
// template layer decides how each status looks.
package validate

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Status int

const (
	Neutral Status = iota
	Valid
	Invalid
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "neutral"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func StatusOf(ok bool) Status {
	if ok {
		return Valid
	}
	return Invalid
}

// Local part and domain are alphanumeric runs joined by single '-', '_' or
// '.' separators, followed by a two- or three-letter suffix.
var EmailRegex = regexp.MustCompile(`(?i)^[0-9a-z]([-_.]?[0-9a-z])*@[0-9a-z]([-_.]?[0-9a-z])*\.[a-z]{2,3}$`)

func IsEmail(value string) bool {
	return EmailRegex.MatchString(value)
}

// ValidateEmail reports Neutral for an empty field so an untouched input is
// not flagged.
func ValidateEmail(value string) Status {
	if value == "" {
		return Neutral
	}
	return StatusOf(IsEmail(value))
}

func PasswordsMatch(password, confirmation string) bool {
	return password == confirmation
}

func ValidatePasswordMatch(password, confirmation string) Status {
	return StatusOf(PasswordsMatch(password, confirmation))
}

// Rules for use with validation.ValidateStruct.
var (
	EmailRule = validation.Match(EmailRegex).Error("invalid_email_format")
)

// Required returns a required rule that reports msg to the user.
func Required(msg string) validation.Rule {
	return validation.Required.Error(msg)
}

// FirstMessage picks a single user-facing message out of an ozzo error,
// preferring the fields in the order given.
func FirstMessage(err error, fieldOrder ...string) string {
	if err == nil {
		return ""
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return err.Error()
	}
	for _, field := range fieldOrder {
		if fieldErr, ok := errs[field]; ok && fieldErr != nil {
			return fieldErr.Error()
		}
	}
	for _, fieldErr := range errs {
		if fieldErr != nil {
			return fieldErr.Error()
		}
	}
	return err.Error()
}
