package api

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) GetArticle(ctx context.Context, id int) (*Article, error) {
	var res envelope[Article]
	err := c.callJSON(ctx, "Get Article", http.MethodGet, fmt.Sprintf("/api/board/%d", id), nil, &res)
	if err != nil {
		return nil, err
	}
	if res.Data.ID == 0 {
		res.Data.ID = id
	}
	return &res.Data, nil
}

func (c *Client) UpdateArticle(ctx context.Context, req UpdateArticleRequest) error {
	return c.callJSON(ctx, "Update Article", http.MethodPut, "/api/board", req, nil)
}
