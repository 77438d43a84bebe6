package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dkomarov/paperchat/internal/client/models"
	"github.com/dkomarov/paperchat/internal/client/session"
	"github.com/dkomarov/paperchat/internal/common"
	"github.com/dkomarov/paperchat/internal/logging"
)

// Client is the backend surface consumed by the rest of the client.
type Client interface {
	Login(ctx context.Context, username, password string) (*session.Token, error)
	Register(ctx context.Context, username string, email *string, password string) (*session.Token, error)
	Refresh(ctx context.Context) (*session.Token, error)
	Me(ctx context.Context) (*models.User, error)
	UpdateMe(ctx context.Context, update UserUpdate) (*models.User, error)
	SetAPIKey(ctx context.Context, apiKey string) (*models.User, error)

	Conversations(ctx context.Context) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, title string) (*models.Conversation, error)
	RenameConversation(ctx context.Context, id int64, title string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id int64) error

	Documents(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
}

// UserUpdate is the partial profile update payload; nil fields are omitted.
type UserUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// HTTPClient talks JSON to the backend under its /api base path. All
// authenticated traffic flows through the AuthTransport installed in hc.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
	log     logging.Logger
}

func NewHTTPClient(baseURL string, hc *http.Client, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/api",
		hc:      hc,
		log:     log,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
	Password string  `json:"password"`
}

type apiKeyRequest struct {
	OpenAIAPIKey string `json:"openai_api_key"`
}

type conversationRequest struct {
	Title string `json:"title"`
}

// Login exchanges credentials for a token. The context is marked so a
// wrong-password 401 surfaces as rejected credentials instead of triggering
// the pipeline's refresh recovery; there is no session to refresh yet.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (*session.Token, error) {
	var tok session.Token
	err := c.doJSON(WithoutAuthRetry(ctx), http.MethodPost, "/auth/login", loginRequest{Username: username, Password: password}, &tok)
	if err != nil {
		return nil, mapCredentialErr(err)
	}
	return &tok, nil
}

// Register creates an account; like Login it bypasses 401 recovery.
func (c *HTTPClient) Register(ctx context.Context, username string, email *string, password string) (*session.Token, error) {
	var tok session.Token
	err := c.doJSON(WithoutAuthRetry(ctx), http.MethodPost, "/auth/register", registerRequest{Username: username, Email: email, Password: password}, &tok)
	if err != nil {
		return nil, mapCredentialErr(err)
	}
	return &tok, nil
}

// Refresh exchanges the bearer token the pipeline attaches for a fresh one.
// The context is marked so a 401 here propagates instead of recursing into
// the pipeline's own refresh recovery.
func (c *HTTPClient) Refresh(ctx context.Context) (*session.Token, error) {
	var tok session.Token
	err := c.doJSON(WithoutAuthRetry(ctx), http.MethodPost, "/auth/refresh", nil, &tok)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, "/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) UpdateMe(ctx context.Context, update UserUpdate) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodPut, "/users/me", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) SetAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodPost, "/users/me/api-key", apiKeyRequest{OpenAIAPIKey: apiKey}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var list []models.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *HTTPClient) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/conversations", conversationRequest{Title: title}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *HTTPClient) RenameConversation(ctx context.Context, id int64, title string) (*models.Conversation, error) {
	var conv models.Conversation
	path := fmt.Sprintf("/conversations/%d", id)
	if err := c.doJSON(ctx, http.MethodPut, path, conversationRequest{Title: title}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *HTTPClient) DeleteConversation(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/conversations/%d", id), nil, nil)
}

func (c *HTTPClient) Documents(ctx context.Context) ([]models.Document, error) {
	var list []models.Document
	if err := c.doJSON(ctx, http.MethodGet, "/documents", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *HTTPClient) DeleteDocument(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/documents/%d", id), nil, nil)
}

// doJSON issues one JSON request and decodes the response into out (which
// may be nil). Request bodies are built from bytes so the pipeline can
// rewind them for its single replay.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return normalizeTransportErr(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(ctx, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// statusError extracts FastAPI's {"detail": "..."} shape when present.
func (c *HTTPClient) statusError(ctx context.Context, resp *http.Response) error {
	var payload struct {
		Detail string `json:"detail"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &payload); err != nil {
		payload.Detail = strings.TrimSpace(string(data))
	}
	c.log.Debug(ctx, "request failed", "status", resp.StatusCode, "detail", payload.Detail)
	return &StatusError{Status: resp.StatusCode, Detail: payload.Detail}
}

// mapCredentialErr tags 4xx responses on the credential-exchange endpoints
// as rejected credentials; everything else passes through.
func mapCredentialErr(err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Status >= 400 && se.Status < 500 {
		return &session.Error{
			Kind: session.KindInvalidCredentials,
			Err:  fmt.Errorf("%s: %w", se.Detail, common.ErrInvalidCredentials),
		}
	}
	return err
}
