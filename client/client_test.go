package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeAPI accepts only the access token in valid and renews it on
// /api/auth/refresh when refreshOK is set.
type fakeAPI struct {
	mu        sync.Mutex
	valid     string
	refreshOK bool
	refreshes int32
	meCalls   int32
}

func writeEnv(w http.ResponseWriter, status int, data any, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": status < 300, "data": data, "error": code})
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/auth/refresh":
		atomic.AddInt32(&f.refreshes, 1)
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.refreshOK || body.RefreshToken != "refresh-1" {
			writeEnv(w, http.StatusUnauthorized, nil, "InvalidToken")
			return
		}
		f.valid = "access-2"
		writeEnv(w, http.StatusOK, map[string]string{"accessToken": "access-2"}, "")
	case "/api/auth/me":
		atomic.AddInt32(&f.meCalls, 1)
		f.mu.Lock()
		valid := f.valid
		f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			writeEnv(w, http.StatusUnauthorized, nil, "ExpiredToken")
			return
		}
		writeEnv(w, http.StatusOK, map[string]any{"user": map[string]any{"id": 7, "name": "Ana"}}, "")
	case "/api/auth/logout":
		writeEnv(w, http.StatusInternalServerError, nil, "InternalError")
	default:
		writeEnv(w, http.StatusNotFound, nil, "NotFound")
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c := New(srv.URL, WithHTTPClient(srv.Client()))
	c.SetTokens(Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"})
	return c
}

func TestRenewsOnceAndRetries(t *testing.T) {
	api := &fakeAPI{valid: "access-2", refreshOK: true}
	c := newTestClient(t, api)

	me, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.Name != "Ana" {
		t.Fatalf("name = %q", me.Name)
	}
	if atomic.LoadInt32(&api.refreshes) != 1 || atomic.LoadInt32(&api.meCalls) != 2 {
		t.Fatalf("refreshes = %d, me calls = %d; want 1 and 2", api.refreshes, api.meCalls)
	}
	if got := c.Tokens(); got.AccessToken != "access-2" || got.RefreshToken != "refresh-1" {
		t.Fatalf("tokens = %+v", got)
	}
}

func TestFailedRenewalClearsTokens(t *testing.T) {
	api := &fakeAPI{valid: "never"}
	c := newTestClient(t, api)

	_, err := c.Me(context.Background())
	var ae *APIError
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized || ae.Code != "ExpiredToken" {
		t.Fatalf("err = %v, want the original 401", err)
	}
	if atomic.LoadInt32(&api.refreshes) != 1 || atomic.LoadInt32(&api.meCalls) != 1 {
		t.Fatalf("refreshes = %d, me calls = %d", api.refreshes, api.meCalls)
	}
	if got := c.Tokens(); got != (Tokens{}) {
		t.Fatalf("tokens not cleared: %+v", got)
	}
}

func TestRetryStillUnauthorizedIsReturned(t *testing.T) {
	api := &fakeAPI{valid: "something-else", refreshOK: true}
	c := newTestClient(t, api)

	if _, err := c.Me(context.Background()); !IsUnauthorized(err) {
		t.Fatalf("err = %v", err)
	}
	if atomic.LoadInt32(&api.refreshes) != 1 || atomic.LoadInt32(&api.meCalls) != 2 {
		t.Fatalf("refreshes = %d, me calls = %d", api.refreshes, api.meCalls)
	}
}

func TestAnonymousRequestIsNotRenewed(t *testing.T) {
	api := &fakeAPI{valid: "access-2", refreshOK: true}
	c := newTestClient(t, api)
	c.SetTokens(Tokens{})

	if _, err := c.Me(context.Background()); !IsUnauthorized(err) {
		t.Fatalf("err = %v", err)
	}
	if atomic.LoadInt32(&api.refreshes) != 0 {
		t.Fatalf("refreshes = %d", api.refreshes)
	}
}

func TestConcurrentUnauthorizedShareOneRenewal(t *testing.T) {
	api := &fakeAPI{valid: "access-2", refreshOK: true}
	c := newTestClient(t, api)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Me(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Me: %v", err)
		}
	}
	if n := atomic.LoadInt32(&api.refreshes); n != 1 {
		t.Fatalf("refreshes = %d, want 1", n)
	}
}

func TestLogoutClearsTokensOnFailure(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	if err := c.Logout(context.Background()); err == nil {
		t.Fatal("expected server error")
	}
	if got := c.Tokens(); got != (Tokens{}) {
		t.Fatalf("tokens = %+v", got)
	}
}
