package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"quiz-lobby-service/internal/domain"
)

// ResultsClient reads aggregated quiz results from the external results API:
//
//	GET {base}/sessions/{id}/results -> []QuizResult
type ResultsClient struct {
	baseURL string
	client  *http.Client
	token   TokenSource
}

func NewResultsClient(baseURL string, token TokenSource) *ResultsClient {
	return &ResultsClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		token:   token,
	}
}

func (c *ResultsClient) LoadResults(ctx context.Context, sessionID string) ([]domain.QuizResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sessions/"+sessionID+"/results", nil)
	if err != nil {
		return nil, &domain.TransientError{Op: "results", Err: err}
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.TransientError{Op: "results", Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, "results"); err != nil {
		return nil, err
	}

	var results []domain.QuizResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &domain.TransientError{Op: "results", Err: err}
	}
	return results, nil
}
