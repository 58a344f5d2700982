package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenSource supplies the bearer credential for authenticated calls. An
// empty string means no session; the request is then sent unauthenticated
// and the server answers 401.
type TokenSource interface {
	Token() string
}

// Client talks to the feedback API server. It owns no canonical state; every
// response is a copy the caller caches and invalidates on mutation.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
	log    *zap.Logger
}

// New builds a client for the given base URL. The timeout applies per
// request; in-flight work is otherwise bounded by the caller's context.
func New(baseURL string, timeout time.Duration, tokens TokenSource, log *zap.Logger) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", baseURL)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
		log:    log,
	}, nil
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for an access token. The server expects a
// form-encoded body with OAuth2 field names.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", NewNetworkError("build login request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", NewNetworkError("login request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp, "login rejected")
	}
	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", NewNetworkError("decode login response", err)
	}
	if out.AccessToken == "" {
		return "", NewNetworkError("login response missing access token", nil)
	}
	return out.AccessToken, nil
}

// ListFeedback fetches every feedback item for the given employee.
func (c *Client) ListFeedback(ctx context.Context, employeeID int) ([]FeedbackItem, error) {
	var items []FeedbackItem
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/feedback/%d", employeeID), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type feedbackPayload struct {
	EmployeeID     int       `json:"employee_id"`
	Strengths      string    `json:"strengths"`
	AreasToImprove string    `json:"areas_to_improve"`
	Sentiment      Sentiment `json:"sentiment"`
	Tags           string    `json:"tags"`
}

// CreateFeedback submits a new feedback item for the employee. The payload
// never carries an acknowledged field; only the employee can set that, via
// Acknowledge.
func (c *Client) CreateFeedback(ctx context.Context, form FeedbackForm, employeeID int) (FeedbackItem, error) {
	var item FeedbackItem
	payload := feedbackPayload{
		EmployeeID:     employeeID,
		Strengths:      form.Strengths,
		AreasToImprove: form.AreasToImprove,
		Sentiment:      form.Sentiment,
		Tags:           JoinTags(form.Tags),
	}
	if err := c.do(ctx, http.MethodPost, "/feedback", payload, &item); err != nil {
		return FeedbackItem{}, err
	}
	return item, nil
}

// UpdateFeedback replaces the mutable fields of an existing item.
func (c *Client) UpdateFeedback(ctx context.Context, id int, form FeedbackForm, employeeID int) (FeedbackItem, error) {
	var item FeedbackItem
	payload := feedbackPayload{
		EmployeeID:     employeeID,
		Strengths:      form.Strengths,
		AreasToImprove: form.AreasToImprove,
		Sentiment:      form.Sentiment,
		Tags:           JoinTags(form.Tags),
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/feedback/%d", id), payload, &item); err != nil {
		return FeedbackItem{}, err
	}
	return item, nil
}

// DeleteFeedback removes a feedback item.
func (c *Client) DeleteFeedback(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/feedback/%d", id), nil, nil)
}

// Acknowledge marks a feedback item as reviewed by its employee. The
// transition is one-way; the server rejects repeats.
func (c *Client) Acknowledge(ctx context.Context, id int) (FeedbackItem, error) {
	var item FeedbackItem
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/feedback/%d/acknowledge", id), struct{}{}, &item); err != nil {
		return FeedbackItem{}, err
	}
	return item, nil
}

// ListComments fetches the comment thread for a feedback item, oldest first.
func (c *Client) ListComments(ctx context.Context, feedbackID int) ([]Comment, error) {
	var comments []Comment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/feedback/%d/comments", feedbackID), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// AddComment appends a comment to a feedback item's thread.
func (c *Client) AddComment(ctx context.Context, feedbackID int, text string) (Comment, error) {
	var comment Comment
	payload := struct {
		Comment string `json:"comment"`
	}{Comment: text}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/feedback/%d/comment", feedbackID), payload, &comment); err != nil {
		return Comment{}, err
	}
	return comment, nil
}

// CreateFeedbackRequest files an employee's request for feedback. The server
// routes it to the employee's manager.
func (c *Client) CreateFeedbackRequest(ctx context.Context, message string, tags []string) (FeedbackRequest, error) {
	var req FeedbackRequest
	payload := struct {
		Message string `json:"message"`
		Tags    string `json:"tags"`
	}{Message: message, Tags: JoinTags(tags)}
	if err := c.do(ctx, http.MethodPost, "/feedback-request", payload, &req); err != nil {
		return FeedbackRequest{}, err
	}
	return req, nil
}

// PendingRequests fetches the manager's unfulfilled feedback requests.
func (c *Client) PendingRequests(ctx context.Context) ([]FeedbackRequest, error) {
	var reqs []FeedbackRequest
	if err := c.do(ctx, http.MethodGet, "/feedback-requests?fulfilled=false", nil, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// FulfillRequest closes a feedback request. Server-side this is a one-shot
// transition; the local pending list is the caller's to prune.
func (c *Client) FulfillRequest(ctx context.Context, id int) (FeedbackRequest, error) {
	var req FeedbackRequest
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/feedback-request/%d/fulfill", id), struct{}{}, &req); err != nil {
		return FeedbackRequest{}, err
	}
	return req, nil
}

// TeamSummaries fetches the manager dashboard aggregate: one row per team
// member with feedback count and sentiment tallies.
func (c *Client) TeamSummaries(ctx context.Context) ([]TeamMemberSummary, error) {
	var rows []TeamMemberSummary
	if err := c.do(ctx, http.MethodGet, "/dashboard/manager", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// do issues one authenticated JSON request and decodes the response into out
// when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return NewNetworkError("encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return NewNetworkError("build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp, fmt.Sprintf("%s %s", method, path))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewNetworkError("decode response", err)
	}
	return nil
}

// statusError maps a non-2xx response to the error taxonomy: 401/403 are
// authorization, other 4xx are validation, everything else is a server
// failure and reads as network.
func (c *Client) statusError(resp *http.Response, operation string) error {
	detail := readDetail(resp.Body)
	message := operation
	if detail != "" {
		message = fmt.Sprintf("%s: %s", operation, detail)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindAuthorization, Status: resp.StatusCode, Message: message}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return NewValidationError(message, resp.StatusCode)
	default:
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: message}
	}
}

// readDetail pulls the server's {"detail": "..."} error body when present.
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	return strings.TrimSpace(parsed.Detail)
}
