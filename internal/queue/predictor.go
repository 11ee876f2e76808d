package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type predictResponse struct {
	EstimatedWaitMinutes float64 `json:"estimated_wait_minutes"`
}

// HTTPPredictor posts the request to an external wait-time model.
type HTTPPredictor struct {
	URL    string
	Client *http.Client
}

func NewHTTPPredictor(url string) *HTTPPredictor {
	return &HTTPPredictor{URL: url, Client: http.DefaultClient}
}

func (p *HTTPPredictor) Predict(ctx context.Context, req PredictRequest) (float64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("predictor status %d", resp.StatusCode)
	}

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode prediction: %w", err)
	}
	return result.EstimatedWaitMinutes, nil
}
