package website

import (
	"git.coderun.dev/coderun/coderun/src/crurl"
	"git.coderun.dev/coderun/coderun/src/templates"
)

func getBaseData(c *RequestContext, title string) templates.BaseData {
	notices := getNoticesFromCookie(c)

	return templates.BaseData{
		Title:      title,
		CurrentUrl: c.FullUrl(),
		RequestID:  c.RequestID,
		LoggedIn:   c.LoggedIn(),
		Notices:    notices,

		OpenGraphItems: buildDefaultOpenGraphItems(title),

		Header: templates.Header{
			LandingUrl:   crurl.BuildLanding(),
			CommunityUrl: crurl.BuildCommunity(),
			UploadUrl:    crurl.BuildUpload(),
			AccountUrl:   crurl.BuildAccount(""),
			LogoutUrl:    crurl.BuildLogout(),
		},
	}
}

func buildDefaultOpenGraphItems(title string) []templates.OpenGraphItem {
	if title == "" {
		title = "CODE:RUN"
	}

	return []templates.OpenGraphItem{
		{Property: "og:site_name", Value: "CODE:RUN"},
		{Property: "og:type", Value: "website"},
		{Property: "og:title", Value: title},
		{Name: "description", Value: "Video lectures on algorithms and computer science."},
	}
}
