// ABOUTME: This file defines domain models for collected social posts and media
// ABOUTME: Records are immutable once assembled into a CollectionResult

package models

import "time"

// EngagementMetrics holds the public engagement counters of a post.
type EngagementMetrics struct {
	Likes       int `json:"likes"`
	Reposts     int `json:"reposts"`
	Replies     int `json:"replies"`
	Quotes      int `json:"quotes"`
	Impressions int `json:"impressions,omitempty"`
}

// Total returns the engagement sum used for scoring and derived stats.
// Quotes and impressions are reported but do not count toward the sum.
func (m EngagementMetrics) Total() int {
	return m.Likes + m.Reposts + m.Replies
}

// MediaRef is a resolved media attachment of a post.
type MediaRef struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// PostReference links a post to another post it replies to or quotes.
type PostReference struct {
	Type string `json:"type"` // "replied_to" or "quoted"
	ID   string `json:"id"`
}

// PostRecord is one fully assembled post. It is created by the result
// assembler from a raw page item plus resolved media and never mutated
// afterwards.
type PostRecord struct {
	ID          string            `json:"id"`
	AuthorID    string            `json:"author_id"`
	CreatedAt   time.Time         `json:"created_at"`
	Text        string            `json:"text"`
	Metrics     EngagementMetrics `json:"metrics"`
	Language    string            `json:"language,omitempty"`
	Media       []MediaRef        `json:"media,omitempty"`
	References  []PostReference   `json:"references,omitempty"`
	CollectedAt time.Time         `json:"collected_at"`
}

// HasMedia reports whether the post carries at least one resolved attachment.
func (p *PostRecord) HasMedia() bool {
	return len(p.Media) > 0
}
