package website

import (
	"errors"
	"html/template"
	"net/http"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/crurl"
	"git.coderun.dev/coderun/coderun/src/forms"
	"git.coderun.dev/coderun/coderun/src/oops"
	"git.coderun.dev/coderun/coderun/src/parsing"
	"git.coderun.dev/coderun/coderun/src/templates"
)

type ArticleEditTemplateData struct {
	templates.BaseData

	SubmitUrl string
	Article   forms.ArticleDraft
	Preview   template.HTML
}

func renderArticleEdit(c *RequestContext, data ArticleEditTemplateData) ResponseData {
	var res ResponseData
	res.MustWriteTemplate("article_edit.html", data, c.Perf)
	return res
}

func ArticleEdit(c *RequestContext) ResponseData {
	articleID, ok := c.PathParamInt("articleid")
	if !ok {
		return FourOhFour(c)
	}

	end := c.Perf.StartBlock("API", "Fetch article")
	article, err := c.Api.GetArticle(c, articleID)
	end()
	if err != nil {
		switch {
		case api.IsInvalidCredentials(err):
			return forceLogout(c, err)
		case errors.Is(err, api.ErrNotFound):
			return FourOhFour(c)
		default:
			return c.ErrorResponse(http.StatusBadGateway, oops.New(err, "failed to fetch article %d", articleID))
		}
	}

	draft := forms.DraftFromArticle(article)
	return renderArticleEdit(c, ArticleEditTemplateData{
		BaseData:  getBaseData(c, "Edit article"),
		SubmitUrl: crurl.BuildArticleEdit(articleID),
		Article:   draft,
		Preview:   parsing.ParseMarkdown(draft.Content, parsing.ContentMarkdown),
	})
}

func ArticleEditSubmit(c *RequestContext) ResponseData {
	articleID, ok := c.PathParamInt("articleid")
	if !ok {
		return FourOhFour(c)
	}

	form, err := c.GetFormValues()
	if err != nil {
		return c.RejectRequest("Invalid form data")
	}

	draft := forms.ParseArticle(articleID, form)
	data := ArticleEditTemplateData{
		BaseData:  getBaseData(c, "Edit article"),
		SubmitUrl: crurl.BuildArticleEdit(articleID),
		Article:   draft,
	}

	req, err := draft.ComposeArticle(articleID)
	if err != nil {
		data.AddImmediateNotice(noticeFailure, userMessage(err))
		return renderArticleEdit(c, data)
	}

	end := c.Perf.StartBlock("API", "Update article")
	err = c.Api.UpdateArticle(c, req)
	end()
	if err != nil {
		if api.IsInvalidCredentials(err) {
			return forceLogout(c, err)
		}
		c.Logger.Warn().Err(err).Int("article_id", articleID).Msg("failed to update article")
		data.AddImmediateNotice(noticeFailure, "We couldn't save your changes. Please try again.")
		return renderArticleEdit(c, data)
	}

	res := c.Redirect(crurl.BuildCommunity(), http.StatusSeeOther)
	res.AddFutureNotice(noticeSuccess, "Your article was updated.")
	return res
}
