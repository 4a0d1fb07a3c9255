package templates

import (
	"html/template"

	"git.coderun.dev/coderun/coderun/src/validate"
)

type BaseData struct {
	Title          string
	CanonicalLink  string
	OpenGraphItems []OpenGraphItem
	BodyClasses    []string
	Notices        []Notice

	CurrentUrl string
	RequestID  string
	LoggedIn   bool

	Header Header
}

func (bd *BaseData) AddImmediateNotice(class, content string) {
	bd.Notices = append(bd.Notices, Notice{
		Class:   class,
		Content: template.HTML(template.HTMLEscapeString(content)),
	})
}

type Header struct {
	LandingUrl   string
	CommunityUrl string
	UploadUrl    string
	AccountUrl   string
	LogoutUrl    string
}

type OpenGraphItem struct {
	Property string
	Name     string
	Value    string
}

type Notice struct {
	Content template.HTML
	Class   string
}

// Modal is a dialog the page opens on load.
type Modal struct {
	Title   string
	Message string

	// Where the dialog's form posts, if it has one.
	ActionUrl   string
	ActionLabel string

	// Both addresses ride along so the action can choose between them.
	Email      string
	LoginEmail string
}

type Field struct {
	Name   string
	Value  string
	Status validate.Status
}

type Course struct {
	Name     string
	Label    string
	Selected bool
}

type Tag struct {
	ID       int
	Name     string
	Selected bool
}

type Video struct {
	ID          int
	Title       string
	Description template.HTML
	Uploader    string
	Views       int
	CreatedAt   string
	Tags        []string
	PlaylistUrl string
	Processing  bool
}

type Comment struct {
	ID        int
	Author    string
	Content   template.HTML
	CreatedAt string
}
