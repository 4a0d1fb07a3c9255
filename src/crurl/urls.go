package crurl

import (
	"fmt"
	"regexp"

	"git.coderun.dev/coderun/coderun/src/oops"
)

var RegexLanding = regexp.MustCompile("^/$")

func BuildLanding() string {
	return Url("/", nil)
}

var RegexAccount = regexp.MustCompile("^/account$")

// BuildAccount links to the account page. A non-empty destination is where
// the user is sent after logging in.
func BuildAccount(destination string) string {
	var query []Q
	if destination != "" {
		query = append(query, Q{Name: "redirect", Value: destination})
	}
	return Url("/account", query)
}

var RegexSignup = regexp.MustCompile("^/account/signup$")

func BuildSignup() string {
	return Url("/account/signup", nil)
}

var RegexLogin = regexp.MustCompile("^/account/login$")

func BuildLogin() string {
	return Url("/account/login", nil)
}

var RegexEmailCheck = regexp.MustCompile("^/account/emailcheck$")

func BuildEmailCheck() string {
	return Url("/account/emailcheck", nil)
}

var RegexResendVerification = regexp.MustCompile("^/account/resend$")

func BuildResendVerification() string {
	return Url("/account/resend", nil)
}

var RegexTemporaryPassword = regexp.MustCompile("^/account/password$")

func BuildTemporaryPassword() string {
	return Url("/account/password", nil)
}

var RegexValidateSignup = regexp.MustCompile("^/account/validate$")

func BuildValidateSignup() string {
	return Url("/account/validate", nil)
}

var RegexLogout = regexp.MustCompile("^/logout$")

func BuildLogout() string {
	return Url("/logout", nil)
}

var RegexCommunity = regexp.MustCompile("^/community$")

func BuildCommunity() string {
	return Url("/community", nil)
}

var RegexArticleEdit = regexp.MustCompile(`^/community/(?P<articleid>\d+)/edit$`)

func BuildArticleEdit(articleID int) string {
	if articleID < 1 {
		panic(oops.New(nil, "Invalid article ID (%d), must be >= 1", articleID))
	}
	return Url(fmt.Sprintf("/community/%d/edit", articleID), nil)
}

var RegexUpload = regexp.MustCompile("^/upload$")

func BuildUpload() string {
	return Url("/upload", nil)
}

var RegexWatch = regexp.MustCompile(`^/watch/(?P<videoid>\d+)$`)

func BuildWatch(videoID int) string {
	if videoID < 1 {
		panic(oops.New(nil, "Invalid video ID (%d), must be >= 1", videoID))
	}
	return Url(fmt.Sprintf("/watch/%d", videoID), nil)
}

var RegexAssets = regexp.MustCompile(`^/assets/(?P<file>[\w.-]+)$`)

func BuildAsset(file string) string {
	return AssetUrl(file)
}

var RegexHealth = regexp.MustCompile("^/healthz$")

func BuildHealth() string {
	return Url("/healthz", nil)
}
