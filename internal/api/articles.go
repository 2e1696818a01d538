package api

import (
	"context"
	"net/http"
	"strconv"

	"dailydigest/internal/domain"
)

// SaveArticle bookmarks an article for the reading list.
func (c *Client) SaveArticle(ctx context.Context, id int64) (*domain.Ack, error) {
	body, err := jsonBody(domain.SaveRequest{ArticleID: id})
	if err != nil {
		return nil, err
	}
	var ack domain.Ack
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/articles/save",
		body:        body,
		contentType: "application/json",
	}, &ack)
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// UnsaveArticle removes a bookmark.
func (c *Client) UnsaveArticle(ctx context.Context, id int64) (*domain.Ack, error) {
	var ack domain.Ack
	path := "/articles/save/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, request{method: http.MethodDelete, path: path}, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// SavedArticles lists the reading list, most recently saved first.
func (c *Client) SavedArticles(ctx context.Context) ([]domain.SavedArticle, error) {
	var saved []domain.SavedArticle
	if err := c.do(ctx, request{method: http.MethodGet, path: "/articles/saved"}, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// GetArticle fetches one article.
func (c *Client) GetArticle(ctx context.Context, id int64) (*domain.Article, error) {
	var a domain.Article
	path := "/articles/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
