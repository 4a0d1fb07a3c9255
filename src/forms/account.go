package forms

import (
	"net/url"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/validate"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	MsgEnterEmail   = "Please enter your email address."
	MsgInvalidEmail = "Please enter a valid email address."
)

// Credentials is the state of the signup form. ConfirmedPassword is only set
// once the user has typed the same password twice; a later mismatch leaves
// the old value in place.
type Credentials struct {
	Email             string
	RawPassword       string
	ConfirmedPassword string
	Nickname          string
}

// ConfirmPassword checks confirmation against the typed password. On a
// match the confirmed value is recorded; otherwise nothing changes but the
// returned status.
func (c Credentials) ConfirmPassword(confirmation string) (Credentials, validate.Status) {
	status := validate.ValidatePasswordMatch(c.RawPassword, confirmation)
	if status == validate.Valid {
		c.ConfirmedPassword = confirmation
	}
	return c, status
}

func (c Credentials) EmailStatus() validate.Status {
	return validate.ValidateEmail(c.Email)
}

func ParseSignup(form url.Values) (Credentials, validate.Status) {
	creds := Credentials{
		Email:       field(form, "email"),
		Nickname:    field(form, "nickname"),
		RawPassword: form.Get("password"),
	}
	return creds.ConfirmPassword(form.Get("password_confirm"))
}

// ComposeSignup fails unless the email is well-formed and the password has
// been confirmed. The raw password is sent; hashing is the platform's job.
func (c Credentials) ComposeSignup() (api.SignupRequest, error) {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Email,
			validate.Required(MsgEnterEmail),
			validate.EmailRule.Error(MsgInvalidEmail),
		),
		validation.Field(&c.Nickname, validate.Required("Please choose a nickname.")),
		validation.Field(&c.ConfirmedPassword, validate.Required("The passwords don't match.")),
	)
	if err != nil {
		return api.SignupRequest{}, newError(err, "Email", "Nickname", "ConfirmedPassword")
	}

	return api.SignupRequest{
		Email:    c.Email,
		Password: c.ConfirmedPassword,
		Name:     c.Nickname,
	}, nil
}

type LoginForm struct {
	Email    string
	Password string
}

func ParseLogin(form url.Values) LoginForm {
	return LoginForm{
		Email:    field(form, "email"),
		Password: form.Get("password"),
	}
}

func (f LoginForm) ComposeLogin() (api.LoginRequest, error) {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Email, validate.Required(MsgEnterEmail)),
		validation.Field(&f.Password, validate.Required("Please enter your password.")),
	)
	if err != nil {
		return api.LoginRequest{}, newError(err, "Email", "Password")
	}

	return api.LoginRequest{
		Email:    f.Email,
		Password: f.Password,
	}, nil
}

// SignupStatus is what the account page shows next to the signup fields
// while the user types.
type SignupStatus struct {
	Email    validate.Status `json:"email"`
	Password validate.Status `json:"password"`
}

func CheckSignup(email, password, confirmation string) SignupStatus {
	status := SignupStatus{
		Email:    validate.ValidateEmail(email),
		Password: validate.ValidatePasswordMatch(password, confirmation),
	}
	if password == "" && confirmation == "" {
		status.Password = validate.Neutral
	}
	return status
}

// ResendAddress picks where the verification mail goes: the address typed
// into the signup form if there is one, otherwise the login address.
func ResendAddress(signupEmail, loginEmail string) string {
	if signupEmail != "" {
		return signupEmail
	}
	return loginEmail
}
