package api

import "io"

type envelope[T any] struct {
	Data T `json:"data"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SignupResponse struct {
	// The platform reports a profile link only on some deployments; its
	// absence is not a failure.
	Profile *string `json:"profile,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID      int     `json:"id"`
	Email   string  `json:"email"`
	Name    string  `json:"name"`
	Active  bool    `json:"active"`
	Profile *string `json:"profile,omitempty"`
}

// LoginResponse carries a token only when the account has verified its
// email address.
type LoginResponse struct {
	Token string `json:"token,omitempty"`
	User  User   `json:"user"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type Article struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type UpdateArticleRequest struct {
	BoardID int    `json:"board_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Tag struct {
	ID   int
	Name string
}

type TagKind string

const (
	TagLanguage  TagKind = "language"
	TagAlgorithm TagKind = "algorithm"
	TagSubject   TagKind = "subject"
)

var TagKinds = []TagKind{TagLanguage, TagAlgorithm, TagSubject}

// TagCatalog is every tag an upload may carry, in the order the API lists
// them.
type TagCatalog struct {
	Languages  []Tag
	Algorithms []Tag
	Subjects   []Tag
}

type CreateVideoRequest struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	LanguageTagID   *int   `json:"language_tag_id"`
	AlgorithmTagIDs []int  `json:"algorithm_tag_ids"`
	SubjectTagIDs   []int  `json:"subject_tag_ids"`
}

type CreatedVideo struct {
	ID int `json:"id"`
}

type VideoDetail struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Uploader     string   `json:"user_name"`
	Views        int      `json:"views"`
	LanguageTag  *string  `json:"language_tag,omitempty"`
	AlgorithmTag []string `json:"algorithm_tags"`
	SubjectTag   []string `json:"subject_tags"`
	CreatedAt    string   `json:"created_at"`
}

type Comment struct {
	ID       int    `json:"id"`
	UserName string `json:"user_name"`
	Content  string `json:"content"`

	// Left as the API's string; the platform has sent more than one
	// timestamp layout here.
	CreatedAt string `json:"created_at"`
}

// File is a binary attachment forwarded to the API as a multipart "file"
// field.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
