package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsWeaver/internal/domain"
)

func TestScore(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/score" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}

		var payload struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Title != "Nvidia posts record revenue" {
			t.Errorf("unexpected title %q", payload.Title)
		}

		_ = json.NewEncoder(w).Encode(map[string]int{"score": 810})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	score, err := client.Score(context.Background(), domain.RawCandidate{
		Title: "Nvidia posts record revenue",
	})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if score != 810 {
		t.Fatalf("expected 810, got %d", score)
	}
}

func TestScoreRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"score": 1500})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if _, err := client.Score(context.Background(), domain.RawCandidate{Title: "x"}); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestScorePropagatesServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if _, err := client.Score(context.Background(), domain.RawCandidate{Title: "x"}); err == nil {
		t.Fatal("expected error on 503")
	}
}
