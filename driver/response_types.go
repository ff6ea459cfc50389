// ABOUTME: Upstream social API response structures - Driver Layer
// ABOUTME: Typed JSON binding for paginated post pages and media includes

package driver

import "time"

// PageResponse represents one page of the upstream paginated posts API.
// Media attachments arrive out-of-band in the includes block and are
// joined to posts later by media key.
type PageResponse struct {
	Items    []PostItem `json:"data"`
	Includes Includes   `json:"includes"`
	Meta     PageMeta   `json:"meta"`
}

// Includes carries the auxiliary objects referenced by the page items.
type Includes struct {
	Media []MediaItem `json:"media,omitempty"`
}

// PageMeta holds pagination control fields for a page.
type PageMeta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token,omitempty"`
}

// PostItem represents an individual post item from the upstream API.
type PostItem struct {
	ID              string        `json:"id"`
	AuthorID        string        `json:"author_id"`
	CreatedAt       string        `json:"created_at"` // RFC3339
	Text            string        `json:"text"`
	Lang            string        `json:"lang,omitempty"`
	PublicMetrics   PublicMetrics `json:"public_metrics"`
	Attachments     Attachments   `json:"attachments,omitempty"`
	ReferencedPosts []PostRefItem `json:"referenced_posts,omitempty"`
}

// PublicMetrics holds the engagement counters as reported upstream.
type PublicMetrics struct {
	LikeCount       int `json:"like_count"`
	RepostCount     int `json:"repost_count"`
	ReplyCount      int `json:"reply_count"`
	QuoteCount      int `json:"quote_count"`
	ImpressionCount int `json:"impression_count,omitempty"`
}

// Attachments lists the media keys a post references.
type Attachments struct {
	MediaKeys []string `json:"media_keys,omitempty"`
}

// PostRefItem is a reply/quote linkage reported by the upstream API.
type PostRefItem struct {
	Type string `json:"type"` // "replied_to" or "quoted"
	ID   string `json:"id"`
}

// MediaItem represents a media object from the includes block.
type MediaItem struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// GetCreatedTime parses the post creation timestamp. A zero time is
// returned when the upstream value is missing or malformed.
func (p *PostItem) GetCreatedTime() time.Time {
	if p.CreatedAt == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, p.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// HasMediaKeys reports whether the item references any media.
func (p *PostItem) HasMediaKeys() bool {
	return len(p.Attachments.MediaKeys) > 0
}
