package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"dailydigest/internal/domain"
)

// ListDigests returns published digests, newest first.
func (c *Client) ListDigests(ctx context.Context, limit, skip int) ([]domain.DigestSummary, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}

	var digests []domain.DigestSummary
	if err := c.do(ctx, request{method: http.MethodGet, path: "/digests/", query: q}, &digests); err != nil {
		return nil, err
	}
	return digests, nil
}

// GetDigest fetches one digest with its articles.
func (c *Client) GetDigest(ctx context.Context, id int64) (*domain.Digest, error) {
	var d domain.Digest
	path := "/digests/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LatestDigest fetches the newest digest of an edition. A 404 means none
// exists yet.
func (c *Client) LatestDigest(ctx context.Context, edition domain.Edition) (*domain.Digest, error) {
	var d domain.Digest
	path := "/digests/latest/" + url.PathEscape(edition.String())
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDigest asks the backend to assemble a digest. It returns as soon as
// the job is accepted; the digest shows up later through LatestDigest.
func (c *Client) CreateDigest(ctx context.Context, edition domain.Edition) (*domain.Ack, error) {
	var ack domain.Ack
	path := "/digests/create/" + url.PathEscape(edition.String())
	if err := c.do(ctx, request{method: http.MethodPost, path: path}, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}
