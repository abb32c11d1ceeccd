// Package client is a small Go client for the portfolio API.  It keeps the
// access and refresh tokens in a TokenStore and, when a call is rejected
// with 401, renews the access token once and retries the call once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Tokens is the client-side session state.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// TokenStore persists tokens between calls.  Implementations must be safe
// for concurrent use.
type TokenStore interface {
	Load() Tokens
	Save(Tokens)
	Clear()
}

// MemoryTokenStore keeps tokens in process memory.
type MemoryTokenStore struct {
	mu sync.RWMutex
	t  Tokens
}

func (s *MemoryTokenStore) Load() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t
}

func (s *MemoryTokenStore) Save(t Tokens) {
	s.mu.Lock()
	s.t = t
	s.mu.Unlock()
}

func (s *MemoryTokenStore) Clear() { s.Save(Tokens{}) }

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string          `json:"error"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
}

// IsUnauthorized reports whether err is a 401 APIError.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

// Client talks to one API base URL.
type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore

	// renewMu serialises renewals so concurrent 401s share one refresh.
	renewMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithTokenStore(s TokenStore) Option { return func(c *Client) { c.store = s } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   &MemoryTokenStore{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Tokens returns the stored session.
func (c *Client) Tokens() Tokens { return c.store.Load() }

// SetTokens replaces the stored session.
func (c *Client) SetTokens(t Tokens) { c.store.Save(t) }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

// Do sends a request with the stored access token and decodes the
// envelope's data into out (which may be nil).  On 401 it attempts exactly
// one renewal; if that succeeds the request is retried once with the new
// token, otherwise the stored tokens are cleared and the original 401 is
// returned.  Requests sent without a token are never renewed.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}
	sent := c.store.Load().AccessToken
	err = c.send(ctx, method, path, payload, sent, out)
	if !IsUnauthorized(err) || sent == "" || isAuthPath(path) {
		return err
	}
	token, rerr := c.renew(ctx, sent)
	if rerr != nil {
		return err
	}
	return c.send(ctx, method, path, payload, token, out)
}

func isAuthPath(path string) bool {
	switch path {
	case "/api/auth/refresh", "/api/auth/login", "/api/auth/register":
		return true
	}
	return false
}

// renew refreshes the access token.  If another goroutine already renewed
// since stale was sent, its token is reused.
func (c *Client) renew(ctx context.Context, stale string) (string, error) {
	c.renewMu.Lock()
	defer c.renewMu.Unlock()

	cur := c.store.Load()
	if cur.AccessToken != "" && cur.AccessToken != stale {
		return cur.AccessToken, nil
	}
	if cur.RefreshToken == "" {
		c.store.Clear()
		return "", errors.New("client: no refresh token")
	}
	var res struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	payload, _ := encodeBody(map[string]string{"refreshToken": cur.RefreshToken})
	if err := c.send(ctx, http.MethodPost, "/api/auth/refresh", payload, "", &res); err != nil || res.AccessToken == "" {
		c.store.Clear()
		if err == nil {
			err = errors.New("client: refresh returned no access token")
		}
		return "", err
	}
	next := Tokens{AccessToken: res.AccessToken, RefreshToken: cur.RefreshToken}
	if res.RefreshToken != "" {
		next.RefreshToken = res.RefreshToken
	}
	c.store.Save(next)
	return next.AccessToken, nil
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("client: encode body: %w", err)
	}
	return b, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string, out any) error {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("client: decode response: %w", err)
		}
	}
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Code: env.Error, Message: env.Message, Details: env.Details}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("client: decode data: %w", err)
		}
	}
	return nil
}

// ----- typed helpers -----

// Account mirrors the public account fields.
type Account struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is returned by Register and Login.
type Session struct {
	User                  Account   `json:"user"`
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

type Project struct {
	ID            uint64    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	VideoURL      *string   `json:"videoUrl,omitempty"`
	VideoTitle    *string   `json:"videoTitle,omitempty"`
	RepositoryURL *string   `json:"repositoryUrl,omitempty"`
	Technologies  []string  `json:"technologies"`
	IsFeatured    bool      `json:"isFeatured"`
	IsActive      bool      `json:"isActive"`
	DisplayOrder  int       `json:"displayOrder"`
	AuthorName    string    `json:"authorName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

type ProjectList struct {
	Items      []Project  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ProjectFilter selects a page of projects; zero values are omitted.
type ProjectFilter struct {
	Page       int
	Limit      int
	Search     string
	Technology string
	Featured   *bool
}

type ContactRequest struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Subject *string `json:"subject,omitempty"`
	Message string  `json:"message"`
	Phone   *string `json:"phone,omitempty"`
}

type ContactMessage struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type Health struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

func (c *Client) startSession(ctx context.Context, path string, body any) (*Session, error) {
	var s Session
	if err := c.Do(ctx, http.MethodPost, path, body, &s); err != nil {
		return nil, err
	}
	c.store.Save(Tokens{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken})
	return &s, nil
}

// Register creates an account and stores the returned tokens.
func (c *Client) Register(ctx context.Context, name, email, password string) (*Session, error) {
	return c.startSession(ctx, "/api/auth/register",
		map[string]string{"name": name, "email": email, "password": password})
}

// Login stores the returned tokens.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	return c.startSession(ctx, "/api/auth/login", map[string]string{"email": email, "password": password})
}

// Logout revokes the stored refresh token and clears local state, even
// when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.store.Clear()
	t := c.store.Load()
	var body any
	if t.RefreshToken != "" {
		body = map[string]string{"refreshToken": t.RefreshToken}
	}
	return c.Do(ctx, http.MethodPost, "/api/auth/logout", body, nil)
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*Account, error) {
	var res struct {
		User Account `json:"user"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/auth/me", nil, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (c *Client) ListProjects(ctx context.Context, f ProjectFilter) (*ProjectList, error) {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Technology != "" {
		q.Set("technology", f.Technology)
	}
	if f.Featured != nil {
		q.Set("featured", strconv.FormatBool(*f.Featured))
	}
	path := "/api/projects"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var res ProjectList
	if err := c.Do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) FeaturedProjects(ctx context.Context, limit int) ([]Project, error) {
	path := "/api/projects/featured"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var res []Project
	if err := c.Do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetProject(ctx context.Context, id uint64) (*Project, error) {
	var p Project
	if err := c.Do(ctx, http.MethodGet, "/api/projects/"+strconv.FormatUint(id, 10), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SubmitContact(ctx context.Context, req ContactRequest) (*ContactMessage, error) {
	var m ContactMessage
	if err := c.Do(ctx, http.MethodPost, "/api/contacts", req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.Do(ctx, http.MethodGet, "/api/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
