package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"freightflow/internal/pod/domain"
	"freightflow/internal/shared/apperrors"
)

// Client talks to the external vision-analysis service. Every call carries
// a bounded timeout; callers treat any error here as an analysis failure
// and fall back conservatively.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	ImageURL string `json:"image_url"`
}

func (c *Client) Analyze(ctx context.Context, imageURL string) (*domain.VisionResult, error) {
	body, err := json.Marshal(analyzeRequest{ImageURL: imageURL})
	if err != nil {
		return nil, fmt.Errorf("marshal vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision call failed: %w", apperrors.ErrExternalService)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision service returned %d: %w", resp.StatusCode, apperrors.ErrExternalService)
	}

	var result domain.VisionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", apperrors.ErrExternalService)
	}

	if result.FraudScore < 0 {
		result.FraudScore = 0
	}
	if result.FraudScore > 100 {
		result.FraudScore = 100
	}
	return &result, nil
}
