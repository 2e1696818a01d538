package domain

// Article is a single news item inside a digest. Clients never mutate it.
type Article struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Category string `json:"category"`

	// Description is a plain-text (sometimes HTML) teaser. Optional.
	Description *string `json:"description,omitempty"`

	// PublishedAt is when the source published the article. Optional.
	PublishedAt *Timestamp `json:"published_date,omitempty"`

	CreatedAt Timestamp `json:"created_at"`

	// IsSaved is the server's view of the bookmark at fetch time. The
	// saved-id set held by the digest controller is authoritative locally.
	IsSaved bool `json:"is_saved"`

	// Metadata holds extra fields such as author and image_url.
	Metadata map[string]any `json:"metadata_json,omitempty"`
}

// Summary returns the description or an empty string.
func (a Article) Summary() string {
	if a.Description == nil {
		return ""
	}
	return *a.Description
}

// Author returns the author recorded in the article metadata, if any.
func (a Article) Author() string {
	return a.metaString("author")
}

// ImageURL returns the preview image recorded in the article metadata, if any.
func (a Article) ImageURL() string {
	return a.metaString("image_url")
}

func (a Article) metaString(key string) string {
	if a.Metadata == nil {
		return ""
	}
	s, _ := a.Metadata[key].(string)
	return s
}

// SavedArticle is an article from the reading list, stamped with when it was saved.
type SavedArticle struct {
	Article
	SavedAt Timestamp `json:"saved_at"`
}

// SaveRequest is the body of a bookmark request.
type SaveRequest struct {
	ArticleID int64 `json:"article_id"`
}

// Ack is the generic acknowledgement returned by mutating endpoints.
type Ack struct {
	Message   string `json:"message"`
	ArticleID int64  `json:"article_id,omitempty"`
}
