// Package client is the Go SDK for the LookBook API. Client covers the HTTP
// surface; Controller adds the retry/abort state machine around a single
// generation request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrOverloaded marks the retryable 503 condition the server raises when the
// simulated model rejects a request.
var ErrOverloaded = errors.New("model overloaded")

type APIError struct {
	Status  int
	Message string
	Fields  []FieldError
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type User struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Generation struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"userId"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	ImageURL  string    `json:"imageUrl"`
	ResultURL *string   `json:"resultUrl"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken installs the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) Signup(ctx context.Context, email, password, name string) (AuthResult, error) {
	var out AuthResult
	err := c.postJSON(ctx, "/v1/auth/signup", map[string]string{
		"email": email, "password": password, "name": name,
	}, &out)
	if err != nil {
		return AuthResult{}, err
	}
	c.token = out.Token
	return out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var out AuthResult
	err := c.postJSON(ctx, "/v1/auth/login", map[string]string{
		"email": email, "password": password,
	}, &out)
	if err != nil {
		return AuthResult{}, err
	}
	c.token = out.Token
	return out, nil
}

// Generate submits one generation request as multipart form data.
func (c *Client) Generate(ctx context.Context, prompt, style, imageName string, image io.Reader) (Generation, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("prompt", prompt); err != nil {
		return Generation{}, err
	}
	if err := w.WriteField("style", style); err != nil {
		return Generation{}, err
	}
	part, err := w.CreateFormFile("image", imageName)
	if err != nil {
		return Generation{}, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return Generation{}, err
	}
	if err := w.Close(); err != nil {
		return Generation{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generations", &body)
	if err != nil {
		return Generation{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var out Generation
	if err := c.do(req, &out); err != nil {
		return Generation{}, err
	}
	return out, nil
}

// Recent fetches the user's most recent generations.
func (c *Client) Recent(ctx context.Context, limit int) ([]Generation, error) {
	u := c.baseURL + "/v1/generations"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out []Generation
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// File downloads a stored file. The token rides in the query string, the way
// an image tag would request it.
func (c *Client) File(ctx context.Context, ownerID uint, filename string) ([]byte, error) {
	u := fmt.Sprintf("%s/v1/files/%d/%s?authorization=%s",
		c.baseURL, ownerID, url.PathEscape(filename), url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(envelope.Data, out)
}

func decodeError(resp *http.Response) error {
	if resp.StatusCode == http.StatusServiceUnavailable {
		return ErrOverloaded
	}
	var envelope struct {
		Error struct {
			Message string       `json:"message"`
			Errors  []FieldError `json:"errors"`
		} `json:"error"`
	}
	message := resp.Status
	var fields []FieldError
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
		fields = envelope.Error.Errors
	}
	return &APIError{Status: resp.StatusCode, Message: message, Fields: fields}
}
