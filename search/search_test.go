package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInstagram(t *testing.T) {
	var gotPayload map[string]any
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotPayload); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"organic":[
			{"title":"Dhruv Rathee (@dhruvrathee)","link":"https://www.instagram.com/dhruvrathee/","snippet":"bio","position":1},
			{"title":"reel","link":"https://www.instagram.com/reel/abc/","snippet":"","position":2}
		]}`)
	}))
	defer srv.Close()

	c := New("test-key", WithEndpoint(srv.URL))
	results, err := c.Instagram(context.Background(), "dhruv rathee OR dhruvrathee")
	if err != nil {
		t.Fatalf("Instagram() error: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("X-API-KEY = %q, want %q", gotKey, "test-key")
	}
	if q := gotPayload["q"]; q != "dhruv rathee OR dhruvrathee site:instagram.com" {
		t.Errorf("q = %q, want site-scoped query", q)
	}
	if gl := gotPayload["gl"]; gl != "in" {
		t.Errorf("gl = %q, want in", gl)
	}
	if num := gotPayload["num"]; num != float64(10) {
		t.Errorf("num = %v, want 10", num)
	}

	want := []Result{
		{Title: "Dhruv Rathee (@dhruvrathee)", Link: "https://www.instagram.com/dhruvrathee/", Snippet: "bio", Position: 1},
		{Title: "reel", Link: "https://www.instagram.com/reel/abc/", Position: 2},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestInstagramNoAPIKey(t *testing.T) {
	c := New("")
	if _, err := c.Instagram(context.Background(), "anyone"); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("error = %v, want ErrNoAPIKey", err)
	}
}

func TestInstagramServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New("test-key", WithEndpoint(srv.URL))
	if _, err := c.Instagram(context.Background(), "anyone"); err == nil {
		t.Fatal("expected error for HTTP 403")
	}
}
