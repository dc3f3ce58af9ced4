package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"aexfy.org/internal/identity"
)

func TestIssueInvite(t *testing.T) {
	var captured inviteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/invite" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer clave-servicio" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(inviteResponse{ID: "auth-123", ActionLink: "https://idp/invite/abc"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "clave-servicio")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	authID, link, err := client.IssueInvite(context.Background(), "nuevo@aexfy.cl", map[string]any{"rut": "11.111.111-1"})
	if err != nil {
		t.Fatalf("IssueInvite: %v", err)
	}
	if authID != "auth-123" || link != "https://idp/invite/abc" {
		t.Fatalf("unexpected result %q %q", authID, link)
	}
	if captured.Email != "nuevo@aexfy.cl" || captured.Data["rut"] != "11.111.111-1" {
		t.Fatalf("unexpected request payload %+v", captured)
	}
}

func TestIssueInviteConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"msg":"already registered"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "clave")
	_, _, err := client.IssueInvite(context.Background(), "dup@aexfy.cl", nil)
	if !errors.Is(err, identity.ErrValidationConflict) {
		t.Fatalf("expected validation conflict, got %v", err)
	}
}

func TestIssueInviteServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "clave")
	_, _, err := client.IssueInvite(context.Background(), "x@aexfy.cl", nil)
	if !errors.Is(err, identity.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient("", "clave"); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewClient("https://idp", ""); err == nil {
		t.Fatal("expected error for missing service key")
	}
}
