package api

import (
	"context"
	"encoding/json"
	"net/http"

	"git.coderun.dev/coderun/coderun/src/oops"
)

// Each tag endpoint names its label field after the kind of tag, e.g.
// {"id": 1, "language_name": "Go"}.
type rawTag map[string]json.RawMessage

func (t rawTag) toTag(kind TagKind) (Tag, error) {
	var tag Tag
	if err := json.Unmarshal(t["id"], &tag.ID); err != nil {
		return Tag{}, oops.New(err, "tag has no usable id")
	}
	if err := json.Unmarshal(t[string(kind)+"_name"], &tag.Name); err != nil {
		return Tag{}, oops.New(err, "%s tag %d has no name", kind, tag.ID)
	}
	return tag, nil
}

func (c *Client) GetTags(ctx context.Context, kind TagKind) ([]Tag, error) {
	var res envelope[[]rawTag]
	err := c.callJSON(ctx, "Get Tags", http.MethodGet, "/api/tag/"+string(kind), nil, &res)
	if err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(res.Data))
	for _, raw := range res.Data {
		tag, err := raw.toTag(kind)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (c *Client) GetLanguageTags(ctx context.Context) ([]Tag, error) {
	return c.GetTags(ctx, TagLanguage)
}

func (c *Client) GetAlgorithmTags(ctx context.Context) ([]Tag, error) {
	return c.GetTags(ctx, TagAlgorithm)
}

func (c *Client) GetSubjectTags(ctx context.Context) ([]Tag, error) {
	return c.GetTags(ctx, TagSubject)
}
