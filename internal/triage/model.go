package triage

import (
	"time"

	"github.com/linnemanlabs/helpdesk/internal/complaint"
)

// Post is a public social-media post mentioning the operator.
type Post struct {
	ID        string    `json:"post_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// LinkRef is the contact link issued for a complaint.
type LinkRef struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Result is the stored outcome of triaging one post.
type Result struct {
	ID       string    `json:"id"`
	PostID   string    `json:"post_id"`
	Author   string    `json:"author"`
	Content  string    `json:"content"`
	URL      string    `json:"url,omitempty"`
	PostedAt time.Time `json:"posted_at,omitzero"`

	IsComplaint bool     `json:"is_complaint"`
	Score       float64  `json:"complaint_score"`
	Confidence  float64  `json:"confidence"`
	Urgency     string   `json:"urgency"`
	Type        string   `json:"type"`
	Tone        string   `json:"tone"`
	Keywords    []string `json:"keywords_found,omitempty"`
	Patterns    []string `json:"patterns_found,omitempty"`

	ContactLink *LinkRef  `json:"contact_link,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Urgent reports whether the result is a complaint at the top urgency level.
func (r *Result) Urgent() bool {
	return r.IsComplaint && r.Urgency == complaint.UrgencyUrgent
}

func (r *Result) clone() *Result {
	cp := *r
	if r.ContactLink != nil {
		l := *r.ContactLink
		cp.ContactLink = &l
	}
	return &cp
}
