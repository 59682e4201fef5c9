package dropbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestClient creates a Client pointing at a test HTTP server with a
// pre-set access token.
func newTestClient(server *httptest.Server) *Client {
	return &Client{
		httpClient:  server.Client(),
		baseURL:     server.URL,
		tokenURL:    server.URL + "/oauth2/token",
		appKey:      "app-key",
		appSecret:   "app-secret",
		accessToken: "test-access-token",
	}
}

func TestAuthenticate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Errorf("unexpected grant_type: %s", r.Form.Get("grant_type"))
		}
		if r.Form.Get("refresh_token") != "long-lived-refresh" {
			t.Errorf("unexpected refresh_token: %s", r.Form.Get("refresh_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-token",
			"token_type":   "bearer",
			"expires_in":   14400,
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	client.refreshToken = "long-lived-refresh"
	client.accessToken = ""

	if err := client.Authenticate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.accessToken != "fresh-token" {
		t.Errorf("expected fresh-token, got %s", client.accessToken)
	}
}

func TestAuthenticateFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server)
	client.accessToken = ""

	if err := client.Authenticate(context.Background()); err == nil {
		t.Fatal("expected error for rejected refresh token")
	}
}

func TestListFolder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/list_folder" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-access-token" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		var req listFolderRequest
		json.Unmarshal(body, &req)
		if req.Path != "/threads_1" {
			t.Errorf("unexpected path in body: %s", req.Path)
		}
		json.NewEncoder(w).Encode(listFolderResponse{Entries: []Entry{
			{Name: "clip.MP4", PathLower: "/threads_1/clip.mp4"},
			{Name: "photo.jpg", PathLower: "/threads_1/photo.jpg"},
			{Name: "notes.txt", PathLower: "/threads_1/notes.txt"},
		}})
	}))
	defer server.Close()

	client := newTestClient(server)
	entries, err := client.ListFolder(context.Background(), "/threads_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestListFolderAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(apiErrorResponse{ErrorSummary: "path/not_found/"})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.ListFolder(context.Background(), "/missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "path/not_found/") {
		t.Errorf("error should carry error_summary, got: %v", err)
	}
}

func TestEligibleFiles(t *testing.T) {
	entries := []Entry{
		{Name: "clip.MP4"},
		{Name: "movie.mov"},
		{Name: "photo.jpg"},
		{Name: "pic.JPEG"},
		{Name: "shot.png"},
		{Name: "notes.txt"},
		{Name: "archive.zip"},
	}

	eligible := EligibleFiles(entries)
	if len(eligible) != 5 {
		t.Fatalf("expected 5 eligible files, got %d", len(eligible))
	}
	for _, e := range eligible {
		if !e.Eligible() {
			t.Errorf("ineligible entry in result: %s", e.Name)
		}
	}
}

func TestEntryIsVideo(t *testing.T) {
	cases := []struct {
		name  string
		video bool
	}{
		{"clip.mp4", true},
		{"clip.MOV", true},
		{"photo.jpg", false},
		{"pic.jpeg", false},
		{"shot.png", false},
	}
	for _, tc := range cases {
		if got := (Entry{Name: tc.name}).IsVideo(); got != tc.video {
			t.Errorf("%s: expected IsVideo=%v, got %v", tc.name, tc.video, got)
		}
	}
}

func TestTemporaryLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/get_temporary_link" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(temporaryLinkResponse{Link: "https://dl.example.com/clip.mp4"})
	}))
	defer server.Close()

	client := newTestClient(server)
	link, err := client.TemporaryLink(context.Background(), "/threads_1/clip.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != "https://dl.example.com/clip.mp4" {
		t.Errorf("unexpected link: %s", link)
	}
}

func TestDelete(t *testing.T) {
	var deleteCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/delete_v2" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		deleteCalls++
		json.NewEncoder(w).Encode(map[string]any{"metadata": map[string]string{"name": "clip.mp4"}})
	}))
	defer server.Close()

	client := newTestClient(server)
	if err := client.Delete(context.Background(), "/threads_1/clip.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleteCalls != 1 {
		t.Errorf("expected 1 delete call, got %d", deleteCalls)
	}
}
