package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func stubServer(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "u1")
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"conflict", http.StatusConflict, ErrDuplicate},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"unavailable", http.StatusServiceUnavailable, ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := stubServer(t, tc.status, `{"error":"nope"}`)
			_, err := c.GetMachine(context.Background(), "some-id")
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestErrorMessagePropagated(t *testing.T) {
	c := stubServer(t, http.StatusConflict, `{"error":"a machine with hostname 'web-1' already exists"}`)
	_, err := c.CreateMachine(context.Background(), CreateMachineRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got == "" || !errors.Is(err, ErrDuplicate) {
		t.Errorf("error: %v", err)
	}
}

func TestUserHeaderSent(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-User-Id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"pagination":{}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "tenant-42")
	if _, err := c.ListMachines(context.Background(), 1, 10); err != nil {
		t.Fatal(err)
	}
	if gotHeader != "tenant-42" {
		t.Errorf("X-User-Id: got %q, want %q", gotHeader, "tenant-42")
	}
}
