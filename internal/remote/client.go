package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/panoraguard/alarm-console/internal/config"
	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/domain/user"
	"github.com/panoraguard/alarm-console/internal/logger"
	"github.com/panoraguard/alarm-console/internal/version"
)

// Header names.
const (
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-ID"
	headerContentType   = "Content-Type"
	headerUserAgent     = "User-Agent"
	contentTypeJSON     = "application/json"
)

// maxErrorBody bounds how much of an error reply is read for its message.
const maxErrorBody = 4 << 10

// TokenSource returns the bearer token of the current session.
type TokenSource func() (string, bool)

// Client is the REST client of the alarm service and the LAN speaker.
type Client struct {
	// http performs the requests; its own timeout is unused.
	http *http.Client
	// baseURL is the alarm service root.
	baseURL *url.URL
	// speakerURL is the LAN speaker root; nil when not configured.
	speakerURL *url.URL
	// token supplies the Authorization header.
	token TokenSource

	// callTimeout is the default timeout for individual calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSpeakerURL sets the LAN speaker root used by StopAlert.
func WithSpeakerURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil && raw != "" {
			c.speakerURL = u
		}
	}
}

// WithTokenSource sets where the bearer token is read from on every call.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.token = ts
	}
}

// New creates a client for the alarm service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	client := &Client{
		http:        &http.Client{},
		baseURL:     u,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// StatusUpdate is the body of a status change.
type StatusUpdate struct {
	Status     alarm.Status `json:"status"`
	GuardID    *string      `json:"guard_id,omitempty"`
	OperatorID string       `json:"operator_id"`
}

// LoginResult is a successful authentication.
type LoginResult struct {
	// Token is the bearer credential.
	Token string
	// UserID identifies the user.
	UserID string
	// Role is the role granted.
	Role user.Role
	// ExpiresAt is the token expiry, zero when the token carries none.
	ExpiresAt time.Time
}

// ListAlarms fetches one page of alarms; page is 1-based.
func (c *Client) ListAlarms(ctx context.Context, page, perPage int) ([]*alarm.Alarm, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))

	var alarms []*alarm.Alarm
	if err := c.do(ctx, http.MethodGet, c.endpoint(query, "alarms"), nil, &alarms, true); err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}

	return alarms, nil
}

// CountAlarms returns the total number of alarms.
func (c *Client) CountAlarms(ctx context.Context) (int, error) {
	var reply struct {
		Total int `json:"total_alarms"`
	}

	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "alarms", "count"), nil, &reply, true); err != nil {
		return 0, fmt.Errorf("count alarms: %w", err)
	}

	return reply.Total, nil
}

// AlarmsByLocation lists the alarms raised by one camera at a location.
func (c *Client) AlarmsByLocation(ctx context.Context, location, camera string) ([]*alarm.Alarm, error) {
	if location == "" || camera == "" {
		return nil, fmt.Errorf("alarms by location: %w", errIDRequired)
	}

	var alarms []*alarm.Alarm
	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "alarms", "bylocation", location, camera), nil, &alarms, true); err != nil {
		return nil, fmt.Errorf("alarms by location: %w", err)
	}

	return alarms, nil
}

// Alarm fetches a single alarm by id.
func (c *Client) Alarm(ctx context.Context, alarmID string) (*alarm.Alarm, error) {
	if alarmID == "" {
		return nil, fmt.Errorf("get alarm: %w", errIDRequired)
	}

	var a alarm.Alarm
	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "alarms", alarmID), nil, &a, true); err != nil {
		return nil, fmt.Errorf("get alarm: %w", err)
	}

	return &a, nil
}

// AlarmImage returns the base64 snapshot of an alarm, or ErrNoImage.
func (c *Client) AlarmImage(ctx context.Context, alarmID string) (string, error) {
	if alarmID == "" {
		return "", fmt.Errorf("alarm image: %w", errIDRequired)
	}

	var reply struct {
		Image string `json:"image"`
	}

	err := c.do(ctx, http.MethodGet, c.endpoint(nil, "alarms", alarmID, "image"), nil, &reply, true)

	switch {
	case IsStatus(err, http.StatusNotFound):
		return "", ErrNoImage
	case err != nil:
		return "", fmt.Errorf("alarm image: %w", err)
	case reply.Image == "":
		return "", ErrNoImage
	}

	return reply.Image, nil
}

// NotifyGuard asks the alarm service to deliver a notification to the guard.
func (c *Client) NotifyGuard(ctx context.Context, guardID, alarmID string) error {
	if guardID == "" || alarmID == "" {
		return fmt.Errorf("notify guard: %w", errIDRequired)
	}

	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "alarms", "notify", guardID, alarmID), nil, nil, true); err != nil {
		return fmt.Errorf("notify guard: %w", err)
	}

	return nil
}

// UpdateStatus changes the alarm status and returns the stored record.
func (c *Client) UpdateStatus(ctx context.Context, alarmID string, update StatusUpdate) (*alarm.Alarm, error) {
	if alarmID == "" {
		return nil, fmt.Errorf("update status: %w", errIDRequired)
	}

	var updated alarm.Alarm
	if err := c.do(ctx, http.MethodPut, c.endpoint(nil, "alarms", alarmID, "status"), update, &updated, true); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	return &updated, nil
}

// StopAlert silences the camera speaker.
func (c *Client) StopAlert(ctx context.Context) error {
	if c.speakerURL == nil {
		return fmt.Errorf("stop alert: %w", errSpeakerNotSet)
	}

	target := c.speakerURL.JoinPath("speaker", "stop-speaker").String()
	if err := c.do(ctx, http.MethodPost, target, nil, nil, false); err != nil {
		return fmt.Errorf("stop alert: %w", err)
	}

	return nil
}

// User returns the profile of a user.
func (c *Client) User(ctx context.Context, userID string) (*user.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get user: %w", errIDRequired)
	}

	var u user.User
	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "users", userID), nil, &u, true); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// Guards lists the users with the guard role.
func (c *Client) Guards(ctx context.Context) ([]user.User, error) {
	var guards []user.User
	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "users", "guards"), nil, &guards, true); err != nil {
		return nil, fmt.Errorf("list guards: %w", err)
	}

	return guards, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	var reply struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
		UserID      string `json:"user_id"`
	}

	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "auth", "login"), body, &reply, false); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return &LoginResult{
		Token:     reply.AccessToken,
		UserID:    reply.UserID,
		Role:      user.Role(strings.ToUpper(reply.Role)),
		ExpiresAt: tokenExpiry(ctx, reply.AccessToken),
	}, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// console only uses it to avoid holding a session the server already rejects.
func tokenExpiry(ctx context.Context, token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		logger.DebugKV(ctx, "Token is not a readable JWT", "error", err)

		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}

// endpoint joins path segments onto the base URL, escaping each one.
func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := c.baseURL.JoinPath(segments...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// do performs one JSON call under the call timeout and decodes the reply into out.
func (c *Client) do(ctx context.Context, method, target string, in, out any, auth bool) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(callCtx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set(headerUserAgent, version.UserAgent())

	if in != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	if auth {
		token, ok := "", false
		if c.token != nil {
			token, ok = c.token()
		}

		if !ok {
			return ErrNotLoggedIn
		}

		req.Header.Set(headerAuthorization, "Bearer "+token)
	}

	logger.DebugKV(ctx, "Remote call", "method", method, "url", target, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{
			Code:    resp.StatusCode,
			Message: errorMessage(resp.Body),
		}
	}

	if out == nil {
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// errorMessage extracts "message" or "error" from a JSON error body.
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var reply struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	if json.Unmarshal(raw, &reply) == nil {
		if reply.Message != "" {
			return reply.Message
		}

		if reply.Error != "" {
			return reply.Error
		}
	}

	return strings.TrimSpace(string(raw))
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
