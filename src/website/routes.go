package website

import (
	"net/http"
	"regexp"

	"git.coderun.dev/coderun/coderun/src/crurl"
)

var anyPath = regexp.MustCompile("^")

func NewWebsiteRoutes(deps *Deps) http.Handler {
	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			requestIDMiddleware,
			trackRequestPerf(deps.PerfCollector),
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
			loadCommonData(deps),
			sameOriginMiddleware,
			storeNoticesInCookieMiddleware,
		},
	}

	routes.GET(crurl.RegexHealth, Healthz)
	routes.GET(crurl.RegexAssets, Asset)

	routes.GET(crurl.RegexLanding, Landing)
	routes.GET(crurl.RegexCommunity, Community)

	routes.GET(crurl.RegexAccount, AccountPage)
	routes.POST(crurl.RegexSignup, SignupSubmit)
	routes.POST(crurl.RegexLogin, LoginSubmit)
	routes.POST(crurl.RegexEmailCheck, EmailCheckSubmit)
	routes.POST(crurl.RegexResendVerification, ResendVerificationSubmit)
	routes.POST(crurl.RegexTemporaryPassword, TemporaryPasswordSubmit)
	routes.POST(crurl.RegexValidateSignup, ValidateSignup)
	routes.AnyMethod(crurl.RegexLogout, Logout)

	authMiddleware := routes.WithMiddleware(needsAuth)
	authMiddleware.GET(crurl.RegexArticleEdit, ArticleEdit)
	authMiddleware.POST(crurl.RegexArticleEdit, ArticleEditSubmit)
	authMiddleware.GET(crurl.RegexUpload, UploadPage)
	authMiddleware.POST(crurl.RegexUpload, UploadSubmit)
	authMiddleware.GET(crurl.RegexWatch, Watch)

	routes.AnyMethod(anyPath, FourOhFour)

	return router
}
