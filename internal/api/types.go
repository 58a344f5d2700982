package api

import (
	"strings"
	"time"
)

// Sentiment is the categorical tone label carried by every feedback item.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the three sentiments the server accepts.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// FeedbackItem mirrors the server's feedback resource. The server transports
// tags as a single comma-joined string; use TagList to split them.
type FeedbackItem struct {
	ID             int       `json:"id"`
	EmployeeID     int       `json:"employee_id"`
	ManagerID      int       `json:"manager_id"`
	Strengths      string    `json:"strengths"`
	AreasToImprove string    `json:"areas_to_improve"`
	Sentiment      Sentiment `json:"sentiment"`
	Tags           string    `json:"tags"`
	Acknowledged   bool      `json:"acknowledged"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TagList returns the item's tags as individual strings, dropping empties.
func (f FeedbackItem) TagList() []string {
	return SplitTags(f.Tags)
}

// FeedbackForm is the manager's submission payload for create and update.
type FeedbackForm struct {
	Strengths      string
	AreasToImprove string
	Sentiment      Sentiment
	Tags           []string
}

// FeedbackRequest is an employee's open request for feedback. Fulfilled flips
// to true exactly once, server-side, via FulfillRequest.
type FeedbackRequest struct {
	ID         int       `json:"id"`
	EmployeeID int       `json:"employee_id"`
	ManagerID  int       `json:"manager_id"`
	Message    string    `json:"message"`
	Tags       string    `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
	Fulfilled  bool      `json:"fulfilled"`
}

// TagList returns the request's tags as individual strings.
func (r FeedbackRequest) TagList() []string {
	return SplitTags(r.Tags)
}

// Comment is one entry in a feedback item's append-only thread. Text may
// contain markdown; the client renders it verbatim.
type Comment struct {
	ID         int       `json:"id"`
	FeedbackID int       `json:"feedback_id"`
	UserID     int       `json:"user_id"`
	Text       string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// SentimentCounts aggregates feedback tone per team member.
type SentimentCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// TeamMemberSummary is the server-owned aggregate shown on the manager
// dashboard. The client never computes these numbers itself.
type TeamMemberSummary struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	FeedbackCount int             `json:"feedback_count"`
	Sentiments    SentimentCounts `json:"sentiments"`
}

// SplitTags breaks the wire representation of tags into a clean slice.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// JoinTags produces the comma-joined form the server expects.
func JoinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}
