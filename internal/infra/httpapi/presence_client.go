package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quiz-lobby-service/internal/domain"
)

// TokenSource supplies the bearer credential attached to every request. The
// engine does not manage authentication itself; the external auth collaborator
// owns the token.
type TokenSource func() string

// PresenceClient talks to the external presence store over HTTP:
//
//	GET  {base}/sessions/{id}/participants          -> ParticipantsView
//	POST {base}/sessions/{id}/participants/join     {"userId": ...}
//	POST {base}/sessions/{id}/participants/leave    {"userId": ...}
type PresenceClient struct {
	baseURL string
	client  *http.Client
	token   TokenSource
}

func NewPresenceClient(baseURL string, token TokenSource) *PresenceClient {
	return &PresenceClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		token:   token,
	}
}

func (c *PresenceClient) Fetch(ctx context.Context, sessionID string) (domain.ParticipantsView, error) {
	var view domain.ParticipantsView
	body, err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID+"/participants", nil, "fetch")
	if err != nil {
		return domain.ParticipantsView{}, err
	}
	if err := json.Unmarshal(body, &view); err != nil {
		return domain.ParticipantsView{}, &domain.TransientError{Op: "fetch", Err: err}
	}
	return view, nil
}

func (c *PresenceClient) Join(ctx context.Context, sessionID, userID string) error {
	return c.mutate(ctx, sessionID, userID, "join")
}

func (c *PresenceClient) Leave(ctx context.Context, sessionID, userID string) error {
	return c.mutate(ctx, sessionID, userID, "leave")
}

func (c *PresenceClient) mutate(ctx context.Context, sessionID, userID, op string) error {
	payload, err := json.Marshal(map[string]string{"userId": userID})
	if err != nil {
		return &domain.TransientError{Op: op, Err: err}
	}
	_, err = c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/participants/"+op, payload, op)
	return err
}

func (c *PresenceClient) do(ctx context.Context, method, path string, payload []byte, op string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &domain.TransientError{Op: op, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, op); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransientError{Op: op, Err: err}
	}
	return data, nil
}

// classifyStatus maps HTTP status codes onto the engine's failure taxonomy.
// Auth and permission failures are surfaced verbatim and never retried;
// everything else non-2xx is transient and converges on the next poll.
func classifyStatus(status int, op string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, domain.ErrAuthenticationRequired)
	case status == http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, domain.ErrPermissionDenied)
	default:
		return &domain.TransientError{Op: op, Err: fmt.Errorf("unexpected status %d", status)}
	}
}
