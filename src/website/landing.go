package website

import (
	"git.coderun.dev/coderun/coderun/src/tagselect"
	"git.coderun.dev/coderun/coderun/src/templates"
)

type LandingTemplateData struct {
	templates.BaseData
	Courses []templates.Course
}

func Landing(c *RequestContext) ResponseData {
	var res ResponseData
	res.MustWriteTemplate("landing.html", LandingTemplateData{
		BaseData: getBaseData(c, "Select Courses"),
		Courses:  templates.CoursesToTemplate(tagselect.Selection{}),
	}, c.Perf)
	return res
}

func Community(c *RequestContext) ResponseData {
	var res ResponseData
	res.MustWriteTemplate("community.html", getBaseData(c, "Community"), c.Perf)
	return res
}

func Healthz(c *RequestContext) ResponseData {
	var res ResponseData
	res.Header().Set("Content-Type", "text/plain; charset=utf-8")
	res.Write([]byte("ok\n"))
	return res
}
