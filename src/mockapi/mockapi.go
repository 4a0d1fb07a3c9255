// Package mockapi is an in-memory stand-in for the CODE:RUN platform API.
// It speaks the same wire format as the real service closely enough to
// click through every page locally, and the website tests run against it.
// It does not send email: accounts are activated through the same redirect
// link the real verification mail contains.
package mockapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"git.coderun.dev/coderun/coderun/src/logging"
	"git.coderun.dev/coderun/coderun/src/validate"
	lorem "github.com/HandmadeNetwork/golorem"
)

const invalidCredentials = "Could not validate credentials"

// The platform refuses to resend verification mail after this many requests.
const maxVerificationMails = 10

type User struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Password string `json:"-"`

	VerificationMails int `json:"-"`
}

type Tag struct {
	ID   int
	Name string
}

type Article struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Video struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	UserName     string   `json:"user_name"`
	Views        int      `json:"views"`
	LanguageTag  *string  `json:"language_tag"`
	AlgorithmTag []string `json:"algorithm_tags"`
	SubjectTag   []string `json:"subject_tags"`
	CreatedAt    string   `json:"created_at"`

	// Which files have arrived, by field: "thumbnail", "video.mp4", ...
	Files []string `json:"-"`
}

type Comment struct {
	ID        int    `json:"id"`
	UserName  string `json:"user_name"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type Server struct {
	mu sync.Mutex

	users  map[string]*User
	tokens map[string]string // token -> email

	languages  []Tag
	algorithms []Tag
	subjects   []Tag

	articles map[int]*Article
	videos   map[int]*Video
	comments map[int][]Comment

	nextUserID  int
	nextVideoID int

	// FailPath makes every request whose path starts with it fail with a
	// 500, for exercising error pages.
	FailPath string

	routes []mockRoute
}

type mockRoute struct {
	method  string
	regex   *regexp.Regexp
	auth    bool
	handler func(s *Server, w http.ResponseWriter, r *http.Request, user *User, params []string)
}

// New returns a server seeded with tags, one article and a few videos with
// comments. Seeded text is lorem ipsum.
func New() *Server {
	s := &Server{
		users:    map[string]*User{},
		tokens:   map[string]string{},
		articles: map[int]*Article{},
		videos:   map[int]*Video{},
		comments: map[int][]Comment{},

		nextUserID:  1,
		nextVideoID: 1,
	}

	for i, name := range []string{"Python", "Java", "C++", "Go", "JavaScript"} {
		s.languages = append(s.languages, Tag{ID: i + 1, Name: name})
	}
	for i, name := range []string{"Sorting", "Graph", "Dynamic Programming", "Greedy", "Binary Search"} {
		s.algorithms = append(s.algorithms, Tag{ID: i + 1, Name: name})
	}
	for i, name := range []string{"Operating Systems", "Networking", "Databases", "Data Structures"} {
		s.subjects = append(s.subjects, Tag{ID: i + 1, Name: name})
	}

	s.articles[1] = &Article{ID: 1, Title: lorem.Sentence(3, 8), Content: lorem.Paragraph(1, 3)}

	for i := 0; i < 3; i++ {
		lang := s.languages[i].Name
		v := s.addVideo(Video{
			Title:        lorem.Sentence(2, 6),
			Content:      lorem.Paragraph(1, 2),
			UserName:     "coderun",
			Views:        (i + 1) * 17,
			LanguageTag:  &lang,
			AlgorithmTag: []string{s.algorithms[i].Name},
			SubjectTag:   []string{},
		})
		for j := 0; j <= i; j++ {
			s.comments[v.ID] = append(s.comments[v.ID], Comment{
				ID:        j + 1,
				UserName:  "learner" + strconv.Itoa(j+1),
				Content:   lorem.Sentence(4, 12),
				CreatedAt: time.Date(2021, 5, 1+j, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
			})
		}
	}

	s.routes = []mockRoute{
		{http.MethodGet, regexp.MustCompile(`^/openapi\.json$`), false, (*Server).openapi},
		{http.MethodPost, regexp.MustCompile(`^/api/signup$`), false, (*Server).signup},
		{http.MethodPost, regexp.MustCompile(`^/api/login$`), false, (*Server).login},
		{http.MethodGet, regexp.MustCompile(`^/api/emailcheck/([^/]+)$`), false, (*Server).emailCheck},
		{http.MethodGet, regexp.MustCompile(`^/api/emailconfirm/message/([^/]+)$`), false, (*Server).resendVerification},
		{http.MethodGet, regexp.MustCompile(`^/api/emailconfirm/redirect/([^/]+)/(\d+)$`), false, (*Server).confirmEmail},
		{http.MethodPost, regexp.MustCompile(`^/api/newpassword$`), false, (*Server).newPassword},
		{http.MethodGet, regexp.MustCompile(`^/api/board/(\d+)$`), false, (*Server).getArticle},
		{http.MethodPut, regexp.MustCompile(`^/api/board$`), true, (*Server).updateArticle},
		{http.MethodGet, regexp.MustCompile(`^/api/tag/(language|algorithm|subject)$`), false, (*Server).tags},
		{http.MethodPost, regexp.MustCompile(`^/api/video$`), true, (*Server).createVideo},
		{http.MethodPost, regexp.MustCompile(`^/api/thumbnail/(\d+)$`), true, (*Server).uploadThumbnail},
		{http.MethodPost, regexp.MustCompile(`^/api/video/(\d+)/(\w+)$`), true, (*Server).uploadVideo},
		{http.MethodGet, regexp.MustCompile(`^/api/video/(\d+)$`), true, (*Server).videoDetail},
		{http.MethodGet, regexp.MustCompile(`^/api/video/(\d+)/comments$`), true, (*Server).videoComments},
	}

	return s
}

// AddUser registers an account directly. The returned token is valid when
// the account is active; inactive accounts get none.
func (s *Server) AddUser(email, password, name string, active bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[email] = &User{
		ID:       s.nextUserID,
		Email:    email,
		Name:     name,
		Active:   active,
		Password: password,
	}
	s.nextUserID++
	if !active {
		return ""
	}
	return s.issueToken(email)
}

func (s *Server) User(email string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// RevokeTokens invalidates every issued token, as if they had all expired.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]string{}
}

func (s *Server) Video(id int) (Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return Video{}, false
	}
	copied := *v
	copied.Files = append([]string(nil), v.Files...)
	return copied, true
}

func (s *Server) VideoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.videos)
}

func (s *Server) Article(id int) (Article, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return Article{}, false
	}
	return *a, true
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logging.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("mock API request")

	if s.FailPath != "" && strings.HasPrefix(r.URL.Path, s.FailPath) {
		writeDetail(w, http.StatusInternalServerError, "mock failure")
		return
	}

	for _, route := range s.routes {
		if route.method != r.Method {
			continue
		}
		match := route.regex.FindStringSubmatch(r.URL.EscapedPath())
		if match == nil {
			continue
		}
		params := make([]string, 0, len(match)-1)
		for _, p := range match[1:] {
			unescaped, err := url.PathUnescape(p)
			if err != nil {
				writeDetail(w, http.StatusBadRequest, "bad path")
				return
			}
			params = append(params, unescaped)
		}

		var user *User
		if route.auth {
			user = s.authenticate(r)
			if user == nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeDetail(w, http.StatusUnauthorized, invalidCredentials)
				return
			}
		}

		route.handler(s, w, r, user, params)
		return
	}

	writeDetail(w, http.StatusNotFound, "Not Found")
}

func (s *Server) authenticate(r *http.Request) *User {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.tokens[token]
	if !ok {
		return nil
	}
	return s.users[email]
}

// Caller holds s.mu.
func (s *Server) issueToken(email string) string {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		panic(err)
	}
	token := hex.EncodeToString(raw[:])
	s.tokens[token] = email
	return token
}

// Caller holds s.mu.
func (s *Server) addVideo(v Video) *Video {
	v.ID = s.nextVideoID
	s.nextVideoID++
	if v.CreatedAt == "" {
		v.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	s.videos[v.ID] = &v
	return &v
}

func (s *Server) openapi(w http.ResponseWriter, r *http.Request, _ *User, _ []string) {
	writeJSON(w, http.StatusOK, map[string]string{"openapi": "3.0.2"})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request, _ *User, _ []string) {
	var body credentials
	if !readJSON(w, r, &body) {
		return
	}
	if !validate.IsEmail(body.Email) {
		writeDetail(w, http.StatusUnprocessableEntity, "Incorrect e-mail form")
		return
	}
	if body.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "Need to secure password")
		return
	}

	s.mu.Lock()
	_, exists := s.users[body.Email]
	s.mu.Unlock()
	if exists {
		writeDetail(w, http.StatusBadRequest, "Duplicated e-mail")
		return
	}

	s.AddUser(body.Email, body.Password, body.Name, false)
	writeJSON(w, http.StatusOK, map[string]string{"data": "success"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ *User, _ []string) {
	var body credentials
	if !readJSON(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[body.Email]
	if !ok || user.Password != body.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect user")
		return
	}

	res := map[string]interface{}{"user": user}
	if user.Active {
		res["token"] = s.issueToken(user.Email)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) emailCheck(w http.ResponseWriter, r *http.Request, _ *User, params []string) {
	s.mu.Lock()
	_, exists := s.users[params[0]]
	s.mu.Unlock()

	if exists {
		writeDetail(w, http.StatusBadRequest, "Duplicated e-mail")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"data": params[0]})
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request, _ *User, params []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[params[0]]
	switch {
	case !ok:
		writeDetail(w, http.StatusNotFound, "No content(user)")
	case user.VerificationMails >= maxVerificationMails:
		writeJSON(w, http.StatusOK, map[string]string{"data": "fail"})
	case user.Active:
		writeDetail(w, http.StatusBadRequest, "Already verified")
	default:
		user.VerificationMails++
		logging.Info().Str("email", user.Email).Msg(fmt.Sprintf("mock API would mail /api/emailconfirm/redirect/%s/%d", url.PathEscape(user.Email), user.ID))
		writeJSON(w, http.StatusOK, map[string]string{"data": "success"})
	}
}

func (s *Server) confirmEmail(w http.ResponseWriter, r *http.Request, _ *User, params []string) {
	id, _ := strconv.Atoi(params[1])

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[params[0]]
	if !ok || user.ID != id {
		writeDetail(w, http.StatusBadRequest, "Incorrect route")
		return
	}
	user.Active = true
	writeJSON(w, http.StatusOK, map[string]string{"data": "success"})
}

func (s *Server) newPassword(w http.ResponseWriter, r *http.Request, _ *User, _ []string) {
	var body struct {
		Email string `json:"email"`
	}
	if !readJSON(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[body.Email]; ok {
		user.Password = lorem.Word(8, 12)
		logging.Info().Str("email", user.Email).Msg("mock API would mail a temporary password")
	}
	writeJSON(w, http.StatusOK, map[string]string{"send": "success"})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request, _ *User, params []string) {
	id, _ := strconv.Atoi(params[0])

	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No content(board)")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": article})
}

func (s *Server) updateArticle(w http.ResponseWriter, r *http.Request, _ *User, _ []string) {
	var body struct {
		BoardID int    `json:"board_id"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if !readJSON(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[body.BoardID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No content(board)")
		return
	}
	article.Title = body.Title
	article.Content = body.Content
	writeJSON(w, http.StatusOK, map[string]string{"data": "success"})
}

func (s *Server) tags(w http.ResponseWriter, r *http.Request, _ *User, params []string) {
	kind := params[0]
	var tags []Tag
	switch kind {
	case "language":
		tags = s.languages
	case "algorithm":
		tags = s.algorithms
	case "subject":
		tags = s.subjects
	}

	data := make([]map[string]interface{}, 0, len(tags))
	for _, t := range tags {
		data = append(data, map[string]interface{}{
			"id":            t.ID,
			kind + "_name": t.Name,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

func tagNames(tags []Tag, ids []int) []string {
	names := []string{}
	for _, id := range ids {
		for _, t := range tags {
			if t.ID == id {
				names = append(names, t.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (s *Server) createVideo(w http.ResponseWriter, r *http.Request, user *User, _ []string) {
	var body struct {
		Title           string `json:"title"`
		Content         string `json:"content"`
		LanguageTagID   *int   `json:"language_tag_id"`
		AlgorithmTagIDs []int  `json:"algorithm_tag_ids"`
		SubjectTagIDs   []int  `json:"subject_tag_ids"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.Title == "" {
		writeValidationError(w, "field required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := Video{
		Title:        body.Title,
		Content:      body.Content,
		UserName:     user.Name,
		AlgorithmTag: tagNames(s.algorithms, body.AlgorithmTagIDs),
		SubjectTag:   tagNames(s.subjects, body.SubjectTagIDs),
	}
	if body.LanguageTagID != nil {
		if names := tagNames(s.languages, []int{*body.LanguageTagID}); len(names) > 0 {
			v.LanguageTag = &names[0]
		}
	}
	created := s.addVideo(v)
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]int{"id": created.ID}})
}

func (s *Server) uploadThumbnail(w http.ResponseWriter, r *http.Request, _ *User, params []string) {
	s.receiveFile(w, r, params[0], "thumbnail")
}

func (s *Server) uploadVideo(w http.ResponseWriter, r *http.Request, _ *User, params []string) {
	s.receiveFile(w, r, params[0], "video."+params[1])
}

func (s *Server) receiveFile(w http.ResponseWriter, r *http.Request, rawID string, kind string) {
	id, _ := strconv.Atoi(rawID)

	file, _, err := r.FormFile("file")
	if err != nil {
		writeValidationError(w, "field required")
		return
	}
	defer file.Close()
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeDetail(w, http.StatusBadRequest, "failed to read file")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No content(video)")
		return
	}
	v.Files = append(v.Files, kind)
	writeJSON(w, http.StatusOK, map[string]string{"data": "success"})
}

func (s *Server) videoDetail(w http.ResponseWriter, r *http.Request, _ *User, params []string) {
	id, _ := strconv.Atoi(params[0])

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No content(video)")
		return
	}
	v.Views++
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": v})
}

func (s *Server) videoComments(w http.ResponseWriter, r *http.Request, _ *User, params []string) {
	id, _ := strconv.Atoi(params[0])

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[id]; !ok {
		writeDetail(w, http.StatusNotFound, "No content(video)")
		return
	}
	comments := s.comments[id]
	if comments == nil {
		comments = []Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": comments})
}

func readJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeValidationError(w, "value is not a valid dict")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidationError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"detail": []map[string]interface{}{
			{"loc": []string{"body"}, "msg": msg, "type": "value_error"},
		},
	})
}
