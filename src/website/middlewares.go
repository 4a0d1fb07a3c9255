package website

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"git.coderun.dev/coderun/coderun/src/auth"
	"git.coderun.dev/coderun/coderun/src/crurl"
	"git.coderun.dev/coderun/coderun/src/logging"
	"git.coderun.dev/coderun/coderun/src/metrics"
	"git.coderun.dev/coderun/coderun/src/oops"
	"git.coderun.dev/coderun/coderun/src/perf"
	"github.com/google/uuid"
)

func panicCatcherMiddleware(h Handler) Handler {
	return func(c *RequestContext) (res ResponseData) {
		defer func() {
			if recovered := recover(); recovered != nil {
				maybeError, ok := recovered.(*error)
				var err error
				if ok {
					err = *maybeError
				} else if asErr, ok := recovered.(error); ok {
					err = oops.New(asErr, "Recovered from panic")
				} else {
					err = oops.New(nil, fmt.Sprintf("Recovered from panic with value: %v", recovered))
				}
				res = c.ErrorResponse(http.StatusInternalServerError, err)
			}
		}()

		return h(c)
	}
}

const RequestIDHeader = "X-Request-ID"

var requestIDRegex = regexp.MustCompile(`^[\w-]{1,64}$`)

// requestIDMiddleware tags the request, its logger, and the response with an
// id. An id passed in by a proxy is kept if it looks sane.
func requestIDMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		id := c.Req.Header.Get(RequestIDHeader)
		if !requestIDRegex.MatchString(id) {
			id = uuid.New().String()
		}
		c.RequestID = id

		logger := c.Logger.With().Str("request_id", id).Logger()
		c.Logger = &logger
		c.ctx = logging.AttachLoggerToContext(c.Logger, c.ctx)

		res := h(c)
		res.Header().Set(RequestIDHeader, id)
		return res
	}
}

func trackRequestPerf(perfCollector *perf.PerfCollector) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) (res ResponseData) {
			c.Perf = perf.MakeNewRequestPerf(c.Route, c.Req.Method, c.Req.URL.Path)
			metrics.PageRequestsInFlight.Inc()
			defer func() {
				metrics.PageRequestsInFlight.Dec()
				c.Perf.EndRequest()
				record := c.Perf.Record()

				log := c.Logger.Info()
				blockStack := make([]time.Time, 0)
				for i, block := range record.Blocks {
					for len(blockStack) > 0 && block.End.After(blockStack[len(blockStack)-1]) {
						blockStack = blockStack[:len(blockStack)-1]
					}
					log.Str(fmt.Sprintf("[%4.d] At %9.2fms", i, record.MsFromStart(&block)), fmt.Sprintf("%*.s[%s] %s (%.4fms)", len(blockStack)*2, "", block.Category, block.Description, block.DurationMs()))
					blockStack = append(blockStack, block.End)
				}
				status := res.StatusCode
				if status == 0 {
					status = http.StatusOK
				}
				log.Int("status", status).Msg(fmt.Sprintf("Served [%s] %s in %.4fms", record.Method, record.Path, float64(record.Duration().Nanoseconds())/1000/1000))

				metrics.ObservePageRequest(c.Route, status, record.Duration())
				if perfCollector != nil {
					perfCollector.SubmitRun(c.Perf)
				}
			}()

			return h(c)
		}
	}
}

// loadCommonData hands the request its services and reads the token cookie.
// A cookie that can't be opened is cleared.
func loadCommonData(deps *Deps) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			c.Deps = deps

			end := c.Perf.StartBlock("MIDDLEWARE", "Load token")
			token, err := deps.Sealer.TokenFromRequest(c.Req)
			end()

			clearCookie := false
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					c.Logger.Warn().Err(err).Msg("clearing unreadable token cookie")
					clearCookie = true
				}
				token = ""
			}

			c.Token = token
			c.Api = deps.Api.WithToken(token)

			res := h(c)
			if clearCookie {
				res.SetCookie(auth.DeleteTokenCookie())
			}
			return res
		}
	}
}

func needsAuth(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		if !c.LoggedIn() {
			return c.Redirect(crurl.BuildAccount(c.Req.URL.RequestURI()), http.StatusSeeOther)
		}

		return h(c)
	}
}

// sameOriginMiddleware turns away form posts sent from another site. The
// token cookie is SameSite=Lax, so this only matters for older browsers that
// still attach it, but they do send Origin.
func sameOriginMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		if c.Req.Method != http.MethodPost {
			return h(c)
		}
		origin := c.Req.Header.Get("Origin")
		if origin == "" || origin == "null" {
			return h(c)
		}
		originUrl, err := url.Parse(origin)
		if err != nil || originUrl.Host != c.Req.Host {
			c.Logger.Warn().Str("origin", origin).Str("host", c.Req.Host).Msg("cross-site form post rejected")
			return c.RejectRequest("This form was sent from another site.")
		}
		return h(c)
	}
}

func logContextErrors(c *RequestContext, errs ...error) {
	for _, err := range errs {
		c.Logger.Error().Timestamp().Stack().Str("Requested", c.FullUrl()).Err(err).Msg("error occurred during request")
	}
}

func logContextErrorsMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		res := h(c)
		logContextErrors(c, res.Errors...)
		return res
	}
}
