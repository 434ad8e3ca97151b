package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL points at a local API server.
const DefaultBaseURL = "http://localhost:8080/v1"

const accessTokenHeader = "X-Access-Token"

// Client provides typed access to the crate API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL, including
// the version prefix.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// ErrorMessage is one entry of an API error body.
type ErrorMessage struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// APIError represents an error response from the API.
type APIError struct {
	Status   int
	Messages []ErrorMessage
}

func (e APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	parts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		if m.Field != "" {
			parts = append(parts, m.Field+" "+m.Message)
			continue
		}
		parts = append(parts, m.Message)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, strings.Join(parts, "; "))
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t := strings.TrimSpace(token); t != "" {
		req.Header.Set(accessTokenHeader, t)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Messages: extractErrors(resp.Body)}
	}

	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractErrors(body io.Reader) []ErrorMessage {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return nil
	}
	var payload struct {
		Errors []ErrorMessage `json:"errors"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Errors) == 0 {
		if text := strings.TrimSpace(string(data)); text != "" {
			return []ErrorMessage{{Message: text}}
		}
		return nil
	}
	return payload.Errors
}

// User reflects API user payloads.
type User struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Session is returned by signup and login.
type Session struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

// SignupInput describes a new account.
type SignupInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Item reflects API item payloads.
type Item struct {
	ID          string `json:"_id"`
	Owner       string `json:"owner"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

// ItemInput is the body of item create and update calls. Nil fields are
// omitted, which leaves them unchanged on update.
type ItemInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"isPublic,omitempty"`
}

// Signup registers an account and returns its first session.
func (c *Client) Signup(ctx context.Context, input SignupInput) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/user/signup", input, "", &out)
	return out, err
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/user/login", body, "", &out)
	return out, err
}

// Me returns the token holder.
func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var out User
	err := c.do(ctx, http.MethodGet, "/user/me", nil, token, &out)
	return out, err
}

// ListMyItems returns the caller's items. Artists only.
func (c *Client) ListMyItems(ctx context.Context, token string) ([]Item, error) {
	var out []Item
	if err := c.do(ctx, http.MethodGet, "/user/items", nil, token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateItem(ctx context.Context, token string, input ItemInput) (Item, error) {
	var out Item
	err := c.do(ctx, http.MethodPost, "/items", input, token, &out)
	return out, err
}

func (c *Client) GetItem(ctx context.Context, token, id string) (Item, error) {
	var out Item
	err := c.do(ctx, http.MethodGet, itemPath(id), nil, token, &out)
	return out, err
}

func (c *Client) UpdateItem(ctx context.Context, token, id string, input ItemInput) (Item, error) {
	var out Item
	err := c.do(ctx, http.MethodPut, itemPath(id), input, token, &out)
	return out, err
}

func (c *Client) DeleteItem(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, itemPath(id), nil, token, nil)
}

func itemPath(id string) string {
	return "/items/" + url.PathEscape(strings.TrimSpace(id))
}
