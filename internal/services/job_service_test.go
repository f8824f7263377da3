package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/cache"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/metrics"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

type stubJobSearchClient struct {
	listings []models.JobListing
	err      error
	calls    int
	queries  []string
}

func (c *stubJobSearchClient) Search(_ context.Context, query string, location string) ([]models.JobListing, error) {
	c.calls++
	c.queries = append(c.queries, query+"|"+location)
	return c.listings, c.err
}

func TestJobServiceCachesByNormalizedQuery(t *testing.T) {
	ctx := context.Background()
	client := &stubJobSearchClient{listings: []models.JobListing{{ID: "j1", Title: "Go Engineer", Company: "Acme"}}}
	m := metrics.New()
	service := NewJobService(client, cache.NewMemoryCache(), time.Minute, m, zerolog.Nop())

	first, err := service.Search(ctx, "Go  Engineer", "Berlin")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := service.Search(ctx, " go engineer ", "berlin")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if client.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", client.calls)
	}
	if client.queries[0] != "go engineer|berlin" {
		t.Fatalf("unexpected upstream query %q", client.queries[0])
	}
	if len(first) != 1 || len(second) != 1 || second[0].ID != "j1" {
		t.Fatalf("unexpected listings %+v / %+v", first, second)
	}
	if got := testutil.ToFloat64(m.JobCacheLookups.WithLabelValues("hit")); got != 1 {
		t.Fatalf("expected one cache hit, got %v", got)
	}
}

func TestJobServiceUpstreamFailure(t *testing.T) {
	client := &stubJobSearchClient{err: errors.New("timeout")}
	service := NewJobService(client, nil, 0, nil, zerolog.Nop())

	if _, err := service.Search(context.Background(), "go", ""); !errors.Is(err, ErrJobSearchUnavailable) {
		t.Fatalf("expected ErrJobSearchUnavailable, got %v", err)
	}
	if _, err := service.Search(context.Background(), "   ", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestHTTPJobSearchClientSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("q") != "go" || r.URL.Query().Get("location") != "remote" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jobs":[{"id":"j1","title":"Go Engineer","company":"Acme","location":"Remote","url":"https://jobs.example/j1"}]}`))
	}))
	defer server.Close()

	client := NewHTTPJobSearchClient(server.URL+"/", "key")
	listings, err := client.Search(context.Background(), "go", "remote")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(listings) != 1 || listings[0].URL != "https://jobs.example/j1" {
		t.Fatalf("unexpected listings %+v", listings)
	}

	failing := NewHTTPJobSearchClient(server.URL, "wrong")
	if _, err := failing.Search(context.Background(), "go", "remote"); err == nil {
		t.Fatalf("expected error for rejected request")
	}
}
