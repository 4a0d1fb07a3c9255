package forms

import (
	"net/url"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/validate"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const MsgFillEveryField = "Please fill in every field."

type ArticleDraft struct {
	ID      int
	Title   string
	Content string
}

func DraftFromArticle(a *api.Article) ArticleDraft {
	return ArticleDraft{ID: a.ID, Title: a.Title, Content: a.Content}
}

// ParseArticle reads the edited fields over the draft. Content keeps its
// whitespace; an article body may well start with an indented code block.
func ParseArticle(id int, form url.Values) ArticleDraft {
	return ArticleDraft{
		ID:      id,
		Title:   field(form, "title"),
		Content: form.Get("content"),
	}
}

func (d ArticleDraft) ComposeArticle(boardID int) (api.UpdateArticleRequest, error) {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Title, validate.Required(MsgFillEveryField)),
		validation.Field(&d.Content, validate.Required(MsgFillEveryField)),
	)
	if err != nil {
		return api.UpdateArticleRequest{}, newError(err, "Title", "Content")
	}

	return api.UpdateArticleRequest{
		BoardID: boardID,
		Title:   d.Title,
		Content: d.Content,
	}, nil
}
