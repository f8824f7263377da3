package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

type JobSearchClient interface {
	Search(ctx context.Context, query string, location string) ([]models.JobListing, error)
}

type HTTPJobSearchClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPJobSearchClient(baseURL, apiKey string) *HTTPJobSearchClient {
	return &HTTPJobSearchClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPJobSearchClient) Search(ctx context.Context, query string, location string) ([]models.JobListing, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("job search api url is not configured")
	}

	params := url.Values{}
	params.Set("q", query)
	if location != "" {
		params.Set("location", location)
	}
	searchURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build job search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search jobs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("search jobs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response struct {
		Jobs []models.JobListing `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode job search response: %w", err)
	}
	if response.Jobs == nil {
		response.Jobs = []models.JobListing{}
	}
	return response.Jobs, nil
}
