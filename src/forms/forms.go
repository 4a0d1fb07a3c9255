// Package forms turns submitted page forms into API requests. A form is
// decoded from the posted values on every request; nothing is kept between
// requests except what the page echoes back in its own fields.
package forms

import (
	"net/url"
	"strings"

	"git.coderun.dev/coderun/coderun/src/validate"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Error is a form that cannot be submitted as filled in. Message is safe to
// show to the user.
type Error struct {
	Message string
	Fields  validation.Errors
}

func (e *Error) Error() string {
	return e.Message
}

func newError(err error, fieldOrder ...string) error {
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return err
	}
	return &Error{
		Message: validate.FirstMessage(errs, fieldOrder...),
		Fields:  errs,
	}
}

func field(form url.Values, name string) string {
	return strings.TrimSpace(form.Get(name))
}
