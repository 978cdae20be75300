package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"coin_tracker/config"
)

func testConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.ScrapeStorm.BaseURL = baseURL
	cfg.ScrapeStorm.APIKey = "test-token"
	cfg.ScrapeStorm.Tag = "crypto"
	cfg.ScrapeStorm.TimeoutSec = 5
	cfg.Pipeline.MaxAttempts = 3
	cfg.Pipeline.BackoffBaseMS = 1
	cfg.Pipeline.BackoffMaxMS = 5
	return cfg
}

func TestSearchTweetsPaginates(t *testing.T) {
	var cursors []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/twitter.com/api/v2.1/search_tweets_by_query/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("token") != "test-token" || q.Get("query") != "meme coin" || q.Get("tag") != "crypto" {
			t.Errorf("unexpected query params: %v", q)
		}

		cursor := q.Get("cursor")
		cursors = append(cursors, cursor)
		w.Header().Set("Content-Type", "application/json")
		if cursor == "" {
			fmt.Fprint(w, `{"data":{"entries":[{"id":1,"description":"a","created_at":"2025-05-30T10:00:00Z"}]},"pagination":{"next_cursor":"page2"}}`)
			return
		}
		// 第二页没有下一页，应停止翻页
		fmt.Fprint(w, `{"data":{"entries":[{"id":2,"description":"b","created_at":"2025-05-30T11:00:00Z"}]},"pagination":{"next_cursor":""}}`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	tweets, err := client.SearchTweets(context.Background(), "meme coin", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tweets) != 2 {
		t.Fatalf("expected 2 tweets across pages, got %d", len(tweets))
	}
	if len(cursors) != 2 || cursors[0] != "" || cursors[1] != "page2" {
		t.Fatalf("unexpected cursor sequence: %v", cursors)
	}
	if *tweets[0].ID != 1 || *tweets[1].ID != 2 {
		t.Fatalf("tweets out of order: %v %v", *tweets[0].ID, *tweets[1].ID)
	}
}

func TestSearchTweetsPagePerCallTag(t *testing.T) {
	var tags []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tags = append(tags, r.URL.Query().Get("tag"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"entries":[]},"pagination":{"next_cursor":""}}`)
	}))
	defer server.Close()

	// 配置里的默认tag是crypto，单页调用可以按需覆盖
	client := NewClient(testConfig(server.URL))
	if _, err := client.SearchTweetsPage(context.Background(), "meme coin", "top", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.SearchTweets(context.Background(), "meme coin", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tags) != 2 || tags[0] != "top" || tags[1] != "crypto" {
		t.Fatalf("unexpected tag sequence: %v", tags)
	}
}

func TestSearchTweetsStopsAtPageLimit(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":{"entries":[{"id":%d,"description":"x","created_at":"2025-05-30T10:00:00Z"}]},"pagination":{"next_cursor":"page%d"}}`, n, n+1)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	tweets, err := client.SearchTweets(context.Background(), "meme coin", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tweets) != 3 {
		t.Fatalf("expected 3 tweets, got %d", len(tweets))
	}
	if got := requests.Load(); got != 3 {
		t.Fatalf("expected 3 requests, got %d", got)
	}
}

func TestSearchTweetsRetriesTransientErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 前两次返回500，第三次成功
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"entries":[{"id":1,"description":"a","created_at":"2025-05-30T10:00:00Z"}]},"pagination":{"next_cursor":""}}`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	tweets, err := client.SearchTweets(context.Background(), "meme coin", 1)
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if len(tweets) != 1 {
		t.Fatalf("expected 1 tweet, got %d", len(tweets))
	}
	if got := requests.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestSearchTweetsExhaustsRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if _, err := client.SearchTweets(context.Background(), "meme coin", 1); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := requests.Load(); got != 3 {
		t.Fatalf("expected 3 attempts before giving up, got %d", got)
	}
}

func TestSearchTweetsDoesNotRetryClientErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if _, err := client.SearchTweets(context.Background(), "meme coin", 1); err == nil {
		t.Fatal("expected error for unauthorized response")
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("4xx should not be retried, got %d attempts", got)
	}
}

func TestSearchGoogleNews(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/google.com/api/v2.1/search_google_news/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("date_range") != "7d" || q.Get("token") != "test-token" {
			t.Errorf("unexpected query params: %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"entries":[{"title":"DOGE rallies","url":"https://example.com/n1","source":"example","published_at":"2025-05-30","snippet":"..."}]},"pagination":{"next_cursor":""}}`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	resp, err := client.SearchGoogleNews(context.Background(), "DOGE", "7d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data.Entries) != 1 || resp.Data.Entries[0].Title != "DOGE rallies" {
		t.Fatalf("unexpected response: %+v", resp.Data.Entries)
	}
}
