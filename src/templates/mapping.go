package templates

import (
	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/parsing"
	"git.coderun.dev/coderun/coderun/src/tagselect"
)

var CourseLabels = map[tagselect.Course]string{
	tagselect.Algorithm: "Algorithm",
	tagselect.CS:        "CS",
}

func CoursesToTemplate(s tagselect.Selection) []Course {
	result := make([]Course, 0, len(tagselect.Courses))
	for _, c := range tagselect.Courses {
		result = append(result, Course{
			Name:     c.String(),
			Label:    CourseLabels[c],
			Selected: s.Course == c,
		})
	}
	return result
}

func TagsToTemplate(tags []api.Tag, selected func(id int) bool) []Tag {
	result := make([]Tag, 0, len(tags))
	for _, t := range tags {
		result = append(result, Tag{
			ID:       t.ID,
			Name:     t.Name,
			Selected: selected(t.ID),
		})
	}
	return result
}

func VideoToTemplate(v *api.VideoDetail) Video {
	var tags []string
	if v.LanguageTag != nil {
		tags = append(tags, *v.LanguageTag)
	}
	tags = append(tags, v.AlgorithmTag...)
	tags = append(tags, v.SubjectTag...)

	return Video{
		ID:          v.ID,
		Title:       v.Title,
		Description: parsing.ParseMarkdown(v.Content, parsing.ContentMarkdown),
		Uploader:    v.Uploader,
		Views:       v.Views,
		CreatedAt:   v.CreatedAt,
		Tags:        tags,
	}
}

func CommentsToTemplate(comments []api.Comment) []Comment {
	result := make([]Comment, 0, len(comments))
	for _, c := range comments {
		result = append(result, Comment{
			ID:        c.ID,
			Author:    c.UserName,
			Content:   parsing.LinkifyComment(c.Content),
			CreatedAt: c.CreatedAt,
		})
	}
	return result
}
