package website

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/auth"
	"git.coderun.dev/coderun/coderun/src/crurl"
	"git.coderun.dev/coderun/coderun/src/forms"
	"git.coderun.dev/coderun/coderun/src/metrics"
	"git.coderun.dev/coderun/coderun/src/templates"
	"git.coderun.dev/coderun/coderun/src/validate"
)

type AccountTemplateData struct {
	templates.BaseData

	SignupUrl      string
	LoginUrl       string
	EmailCheckUrl  string
	ResendUrl      string
	PasswordUrl    string
	ValidateUrl    string
	AccountUrl     string
	SignupPanelUrl string

	Redirect   string
	Signup     SignupFields
	LoginEmail string
	ShowSignup bool
	Modal      *templates.Modal
}

type SignupFields struct {
	Email    templates.Field
	Nickname string
	Password templates.Field
}

const (
	msgSignupFailed      = "We couldn't create your account. Please try again."
	msgLoginFailed       = "We couldn't log you in. Please check your email and password."
	msgEmailAvailable    = "That email address is available."
	msgEmailTaken        = "That email address is already in use."
	msgResendSent        = "We sent a new verification email."
	msgResendLimit       = "Too many verification emails have been sent to that address."
	msgResendFailed      = "We couldn't send a verification email. Please try again later."
	msgPasswordSent      = "If that address has an account, a temporary password is on its way."
	msgPasswordFailed    = "We couldn't send a temporary password. Please try again later."
	msgRequestFailed     = "Something went wrong. Please try again later."
	msgVerifyEmailTitle  = "Email verification"
	msgVerifyAfterSignup = "Please verify your email address to finish signing up."
	msgVerifyBeforeLogin = "Your email address hasn't been verified yet."
)

func getAccountData(c *RequestContext) AccountTemplateData {
	return AccountTemplateData{
		BaseData: getBaseData(c, "Account"),

		SignupUrl:      crurl.BuildSignup(),
		LoginUrl:       crurl.BuildLogin(),
		EmailCheckUrl:  crurl.BuildEmailCheck(),
		ResendUrl:      crurl.BuildResendVerification(),
		PasswordUrl:    crurl.BuildTemporaryPassword(),
		ValidateUrl:    crurl.BuildValidateSignup(),
		AccountUrl:     crurl.BuildAccount(""),
		SignupPanelUrl: crurl.Url("/account", []crurl.Q{{Name: "panel", Value: "signup"}}),

		Signup: SignupFields{
			Email:    templates.Field{Name: "email"},
			Password: templates.Field{Name: "password_confirm"},
		},
	}
}

func verificationModal(message, signupEmail, loginEmail string) *templates.Modal {
	return &templates.Modal{
		Title:       msgVerifyEmailTitle,
		Message:     message,
		ActionUrl:   crurl.BuildResendVerification(),
		ActionLabel: "Resend verification email",
		Email:       signupEmail,
		LoginEmail:  loginEmail,
	}
}

func renderAccount(c *RequestContext, data AccountTemplateData) ResponseData {
	var res ResponseData
	res.MustWriteTemplate("account.html", data, c.Perf)
	return res
}

func AccountPage(c *RequestContext) ResponseData {
	data := getAccountData(c)
	data.Redirect = safeRedirect(c.Req.URL.Query().Get("redirect"))
	data.ShowSignup = c.Req.URL.Query().Get("panel") == "signup"
	return renderAccount(c, data)
}

func SignupSubmit(c *RequestContext) ResponseData {
	form, err := c.GetFormValues()
	if err != nil {
		return c.RejectRequest("Invalid form data")
	}

	creds, passwordStatus := forms.ParseSignup(form)

	data := getAccountData(c)
	data.ShowSignup = true
	data.Signup.Email.Value = creds.Email
	data.Signup.Email.Status = creds.EmailStatus()
	data.Signup.Nickname = creds.Nickname
	data.Signup.Password.Status = passwordStatus

	req, err := creds.ComposeSignup()
	if err != nil {
		data.AddImmediateNotice(noticeFailure, userMessage(err))
		return renderAccount(c, data)
	}

	_, err = c.Api.Signup(c, req)
	if err != nil {
		c.Logger.Warn().Err(err).Str("email", creds.Email).Msg("signup failed")
		data.AddImmediateNotice(noticeFailure, msgSignupFailed)
		return renderAccount(c, data)
	}

	c.Logger.Info().Str("email", creds.Email).Msg("new account created")
	data.Modal = verificationModal(msgVerifyAfterSignup, creds.Email, "")
	return renderAccount(c, data)
}

func LoginSubmit(c *RequestContext) ResponseData {
	form, err := c.GetFormValues()
	if err != nil {
		return c.RejectRequest("Invalid form data")
	}

	login := forms.ParseLogin(form)
	redirect := safeRedirect(form.Get("redirect"))

	data := getAccountData(c)
	data.LoginEmail = login.Email
	data.Redirect = redirect

	req, err := login.ComposeLogin()
	if err != nil {
		data.AddImmediateNotice(noticeFailure, userMessage(err))
		return renderAccount(c, data)
	}

	resp, err := c.Api.Login(c, req)
	if err != nil {
		c.Logger.Info().Err(err).Str("email", login.Email).Msg("login failed")
		data.AddImmediateNotice(noticeFailure, msgLoginFailed)
		return renderAccount(c, data)
	}

	if !resp.User.Active || resp.Token == "" {
		data.Modal = verificationModal(msgVerifyBeforeLogin, "", login.Email)
		return renderAccount(c, data)
	}

	res := c.Redirect(redirect, http.StatusSeeOther)
	res.SetCookie(c.Deps.Sealer.NewTokenCookie(resp.Token, time.Now()))
	c.Logger.Info().Int("user_id", resp.User.ID).Msg("logged in")
	return res
}

func EmailCheckSubmit(c *RequestContext) ResponseData {
	form, err := c.GetFormValues()
	if err != nil {
		return c.RejectRequest("Invalid form data")
	}

	email := strings.TrimSpace(form.Get("email"))
	status := forms.CheckSignup(email, form.Get("password"), form.Get("password_confirm"))

	data := getAccountData(c)
	data.ShowSignup = true
	data.Signup.Email.Value = email
	data.Signup.Email.Status = status.Email
	data.Signup.Nickname = strings.TrimSpace(form.Get("nickname"))
	data.Signup.Password.Status = status.Password

	if status.Email != validate.Valid {
		data.AddImmediateNotice(noticeFailure, forms.MsgInvalidEmail)
		return renderAccount(c, data)
	}

	err = c.Api.CheckEmailAvailable(c, email)
	switch {
	case err == nil:
		data.AddImmediateNotice(noticeSuccess, msgEmailAvailable)
	case errors.Is(err, api.ErrConflict):
		data.Signup.Email.Status = validate.Invalid
		data.AddImmediateNotice(noticeWarn, msgEmailTaken)
	default:
		c.Logger.Warn().Err(err).Msg("email check failed")
		data.AddImmediateNotice(noticeFailure, msgRequestFailed)
	}
	return renderAccount(c, data)
}

func ResendVerificationSubmit(c *RequestContext) ResponseData {
	form, err := c.GetFormValues()
	if err != nil {
		return c.RejectRequest("Invalid form data")
	}

	address := forms.ResendAddress(strings.TrimSpace(form.Get("email")), strings.TrimSpace(form.Get("login_email")))

	res := c.Redirect(crurl.BuildAccount(""), http.StatusSeeOther)
	if address == "" {
		res.AddFutureNotice(noticeFailure, forms.MsgEnterEmail)
		return res
	}

	err = c.Api.ResendVerification(c, address)
	switch {
	case err == nil:
		res.AddFutureNotice(noticeSuccess, msgResendSent)
	case errors.Is(err, api.ErrTooManyRequests):
		res.AddFutureNotice(noticeWarn, msgResendLimit)
	default:
		c.Logger.Warn().Err(err).Msg("failed to resend verification email")
		res.AddFutureNotice(noticeFailure, msgResendFailed)
	}
	return res
}

func TemporaryPasswordSubmit(c *RequestContext) ResponseData {
	form, err := c.GetFormValues()
	if err != nil {
		return c.RejectRequest("Invalid form data")
	}

	email := strings.TrimSpace(form.Get("email"))

	res := c.Redirect(crurl.BuildAccount(""), http.StatusSeeOther)
	if !validate.IsEmail(email) {
		res.AddFutureNotice(noticeFailure, forms.MsgInvalidEmail)
		return res
	}

	err = c.Api.RequestPasswordReset(c, api.PasswordResetRequest{Email: email})
	if err != nil {
		c.Logger.Warn().Err(err).Msg("failed to request temporary password")
		res.AddFutureNotice(noticeFailure, msgPasswordFailed)
		return res
	}
	res.AddFutureNotice(noticeSuccess, msgPasswordSent)
	return res
}

// ValidateSignup reports field statuses as JSON so the account page can
// colour the signup fields while the user types.
func ValidateSignup(c *RequestContext) ResponseData {
	form, err := c.GetFormValues()
	if err != nil {
		return c.RejectRequest("Invalid form data")
	}

	var res ResponseData
	res.WriteJson(forms.CheckSignup(
		strings.TrimSpace(form.Get("email")),
		form.Get("password"),
		form.Get("password_confirm"),
	), c.Perf)
	return res
}

func Logout(c *RequestContext) ResponseData {
	res := c.Redirect(crurl.BuildLanding(), http.StatusSeeOther)
	res.SetCookie(auth.DeleteTokenCookie())
	return res
}

// forceLogout ends a session the API no longer accepts and sends the user
// to log in again, coming back to this page afterwards.
func forceLogout(c *RequestContext, cause error) ResponseData {
	c.Logger.Info().Err(cause).Msg("API rejected the session token; logging out")
	metrics.ForcedLogoutsTotal.Inc()
	res := c.Redirect(crurl.BuildAccount(c.Req.URL.RequestURI()), http.StatusSeeOther)
	res.SetCookie(auth.DeleteTokenCookie())
	res.AddFutureNotice(noticeWarn, "Your session has expired. Please log in again.")
	return res
}

// safeRedirect only allows paths on this site.
func safeRedirect(dest string) string {
	if dest == "" || dest[0] != '/' || strings.HasPrefix(dest, "//") || strings.HasPrefix(dest, "/\\") {
		return crurl.BuildLanding()
	}
	return dest
}

func userMessage(err error) string {
	var formErr *forms.Error
	if errors.As(err, &formErr) {
		return formErr.Message
	}
	var safe *SafeError
	if errors.As(err, &safe) {
		return safe.Msg
	}
	return msgRequestFailed
}
