package website

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/auth"
	"git.coderun.dev/coderun/coderun/src/crurl"
	"git.coderun.dev/coderun/coderun/src/logging"
	"git.coderun.dev/coderun/coderun/src/oops"
	"git.coderun.dev/coderun/coderun/src/perf"
	"git.coderun.dev/coderun/coderun/src/templates"
	"git.coderun.dev/coderun/coderun/src/utils"
	"git.coderun.dev/coderun/coderun/src/videostream"
	"github.com/rs/zerolog"
)

// Router tries its routes in registration order and hands the request to the
// first one whose method and path match. The last route should match
// anything so every request gets an answer.
type Router struct {
	Routes []Route
}

type Route struct {
	// Empty matches any method.
	Method  string
	Regex   *regexp.Regexp
	Handler Handler
}

func (r *Route) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.Regex)
}

type RouteBuilder struct {
	Router      *Router
	Middlewares []Middleware
}

type Handler func(c *RequestContext) ResponseData
type Middleware func(h Handler) Handler

// The first middleware in the list is the outermost.
func applyMiddlewares(h Handler, ms []Middleware) Handler {
	for i := len(ms) - 1; i >= 0; i-- {
		h = ms[i](h)
	}
	return h
}

func (rb *RouteBuilder) Handle(methods []string, regex *regexp.Regexp, h Handler) {
	if !strings.HasPrefix(regex.String(), "^") {
		panic(fmt.Sprintf("route regex %q must be anchored with '^'", regex))
	}

	h = applyMiddlewares(h, rb.Middlewares)
	for _, method := range methods {
		rb.Router.Routes = append(rb.Router.Routes, Route{
			Method:  method,
			Regex:   regex,
			Handler: h,
		})
	}
}

func (rb *RouteBuilder) AnyMethod(regex *regexp.Regexp, h Handler) {
	rb.Handle([]string{""}, regex, h)
}

func (rb *RouteBuilder) GET(regex *regexp.Regexp, h Handler) {
	rb.Handle([]string{http.MethodGet}, regex, h)
}

func (rb *RouteBuilder) POST(regex *regexp.Regexp, h Handler) {
	rb.Handle([]string{http.MethodPost}, regex, h)
}

// WithMiddleware returns a builder whose routes also run ms, inside the
// middlewares rb already has.
func (rb *RouteBuilder) WithMiddleware(ms ...Middleware) RouteBuilder {
	return RouteBuilder{
		Router:      rb.Router,
		Middlewares: append(append([]Middleware(nil), rb.Middlewares...), ms...),
	}
}

// Deps are the long-lived services every request handler may use.
type Deps struct {
	Api           *api.Client
	Sealer        *auth.Sealer
	Videos        *videostream.Resolver
	PerfCollector *perf.PerfCollector
}

func (r *Router) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	method := req.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}

	// "/watch/3/" routes like "/watch/3".
	routePath := strings.TrimSuffix(req.URL.Path, "/")
	if routePath == "" {
		routePath = "/"
	}

	for i := range r.Routes {
		route := &r.Routes[i]
		if route.Method != "" && route.Method != method {
			continue
		}
		match := route.Regex.FindStringSubmatch(routePath)
		if match == nil {
			continue
		}

		params := map[string]string{}
		for i, name := range route.Regex.SubexpNames() {
			if name != "" {
				params[name] = match[i]
			}
		}

		doRequest(rw, &RequestContext{
			Route:      route.String(),
			Logger:     logging.GlobalLogger(),
			Req:        req,
			Res:        rw,
			PathParams: params,

			ctx: req.Context(),
		}, route.Handler)
		return
	}

	panic(fmt.Sprintf("no route matched %s %s; register a catch-all route last", req.Method, req.URL))
}

type RequestContext struct {
	Route      string
	Logger     *zerolog.Logger
	Req        *http.Request
	PathParams map[string]string
	RequestID  string

	// This is the http package's own response object, not just a ResponseWriter.
	Res http.ResponseWriter

	Deps *Deps

	// The API client for this request, carrying the user's token if they have one.
	Api   *api.Client
	Token string

	Perf *perf.RequestPerf

	ctx context.Context
}

// Our RequestContext is a context.Context

var _ context.Context = &RequestContext{}

func (c *RequestContext) Deadline() (time.Time, bool) {
	return c.ctx.Deadline()
}

func (c *RequestContext) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *RequestContext) Err() error {
	return c.ctx.Err()
}

func (c *RequestContext) Value(key any) any {
	return c.ctx.Value(key)
}

// Plus it does many other things specific to us

func (c *RequestContext) LoggedIn() bool {
	return c.Token != ""
}

func (c *RequestContext) URL() *url.URL {
	return c.Req.URL
}

// FullUrl is the URL the client asked for, as best we can tell behind a
// proxy. Used for logging.
func (c *RequestContext) FullUrl() string {
	scheme := c.Req.Header.Get("X-Forwarded-Proto")
	switch {
	case scheme != "":
	case c.Req.TLS != nil:
		scheme = "https"
	default:
		scheme = "http"
	}
	return scheme + "://" + c.Req.Host + c.Req.URL.String()
}

func (c *RequestContext) PathParamInt(name string) (int, bool) {
	id, err := strconv.Atoi(c.PathParams[name])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (c *RequestContext) GetFormValues() (url.Values, error) {
	err := c.Req.ParseForm()
	if err != nil {
		return nil, err
	}

	return c.Req.PostForm, nil
}

// Redirect answers with a redirect to dest, which is either a URL built by
// crurl or a path on this site. Anything unparseable goes to the landing
// page instead.
func (c *RequestContext) Redirect(dest string, code int) ResponseData {
	destUrl, err := url.Parse(dest)
	if err != nil || dest == "" {
		c.Logger.Warn().Err(err).Str("dest", dest).Msg("bad redirect destination")
		destUrl, _ = url.Parse(crurl.BuildLanding())
	}
	if destUrl.Scheme == "" && destUrl.Host == "" {
		destUrl.Path = path.Clean("/" + destUrl.Path)
	}
	location := destUrl.String()

	res := ResponseData{StatusCode: code}
	res.Header().Set("Location", location)

	// A tiny body for clients that don't follow redirects. POST and HEAD
	// responses go without.
	if c.Req.Method == http.MethodGet {
		res.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(&res, "<a href=\"%s\">%s</a>.\n", html.EscapeString(location), http.StatusText(code))
	}
	return res
}

func (c *RequestContext) ErrorResponse(status int, errs ...error) ResponseData {
	defer func() {
		if r := recover(); r != nil {
			logContextErrors(c, errs...)
			panic(r)
		}
	}()

	type ErrorData struct {
		templates.BaseData
		Message string
	}

	message := "There was a problem handling your request. Please try again later."
	for _, err := range errs {
		var safe *SafeError
		if errors.As(err, &safe) {
			message = safe.Msg
			break
		}
	}

	res := ResponseData{
		StatusCode: status,
		Errors:     errs,
	}
	res.MustWriteTemplate("error.html", ErrorData{
		BaseData: getBaseData(c, "Error"),
		Message:  message,
	}, c.Perf)
	return res
}

func (c *RequestContext) RejectRequest(reason string) ResponseData {
	type RejectData struct {
		templates.BaseData
		RejectReason string
	}

	res := ResponseData{StatusCode: http.StatusBadRequest}
	err := res.WriteTemplate("reject.html", RejectData{
		BaseData:     getBaseData(c, "Rejected"),
		RejectReason: reason,
	}, c.Perf)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "Failed to render reject template"))
	}
	return res
}

type ResponseData struct {
	StatusCode    int
	Body          *bytes.Buffer
	Errors        []error
	FutureNotices []templates.Notice

	header http.Header
}

var _ http.ResponseWriter = &ResponseData{}

func (rd *ResponseData) Header() http.Header {
	if rd.header == nil {
		rd.header = make(http.Header)
	}

	return rd.header
}

func (rd *ResponseData) Write(p []byte) (n int, err error) {
	if rd.Body == nil {
		rd.Body = new(bytes.Buffer)
	}

	return rd.Body.Write(p)
}

func (rd *ResponseData) WriteHeader(status int) {
	rd.StatusCode = status
}

func (rd *ResponseData) SetCookie(cookie *http.Cookie) {
	rd.Header().Add("Set-Cookie", cookie.String())
}

// AddFutureNotice queues a notice for the next page the user sees, which
// is usually the target of a redirect. Content is plain text.
func (rd *ResponseData) AddFutureNotice(class string, content string) {
	var bd templates.BaseData
	bd.AddImmediateNotice(class, content)
	rd.FutureNotices = append(rd.FutureNotices, bd.Notices...)
}

// WriteTemplate reports a missing or broken template as an error instead of
// panicking.
func (rd *ResponseData) WriteTemplate(name string, data interface{}, rp *perf.RequestPerf) (err error) {
	defer utils.RecoverPanicAsError(&err)
	if rp != nil {
		end := rp.StartBlock("TEMPLATE", name)
		defer end()
	}
	return templates.GetTemplate(name).Execute(rd, data)
}

func (rd *ResponseData) MustWriteTemplate(name string, data interface{}, rp *perf.RequestPerf) {
	err := rd.WriteTemplate(name, data, rp)
	if err != nil {
		panic(err)
	}
}

func (rd *ResponseData) WriteJson(data any, rp *perf.RequestPerf) {
	if rp != nil {
		end := rp.StartBlock("JSON", "Encoding response")
		defer end()
	}
	dataJson, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	rd.Header().Set("Content-Type", "application/json")
	rd.Write(dataJson)
}

// doRequest runs the handler and copies its buffered response out. A panic
// that escapes every middleware ends up here and gets a bare 500.
func doRequest(rw http.ResponseWriter, c *RequestContext, h Handler) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logging.LogPanicValue(c.Logger, recovered, "request panicked and was not handled")
			rw.WriteHeader(http.StatusInternalServerError)
			io.WriteString(rw, "There was a problem handling your request.\nPlease try again later.")
		}
	}()

	res := h(c)
	if res.StatusCode == 0 {
		res.StatusCode = http.StatusOK
	}

	for name, vals := range res.Header() {
		for _, val := range vals {
			rw.Header().Add(name, val)
		}
	}

	// Content-Type and Content-Length are filled in here rather than by the
	// http package so HEAD responses carry them too.
	var body []byte
	if res.Body != nil {
		body = res.Body.Bytes()
		if rw.Header().Get("Content-Type") == "" {
			rw.Header().Set("Content-Type", http.DetectContentType(body))
		}
		if rw.Header().Get("Content-Length") == "" {
			rw.Header().Set("Content-Length", strconv.Itoa(len(body)))
		}
	}
	rw.WriteHeader(res.StatusCode)

	if c.Req.Method == http.MethodHead || len(body) == 0 {
		return
	}
	if _, err := rw.Write(body); err != nil {
		if errors.Is(err, syscall.EPIPE) {
			c.Logger.Debug().Msg("client hung up before the response was written")
		} else {
			c.Logger.Error().Err(err).Msg("failed to write response body")
		}
	}
}
