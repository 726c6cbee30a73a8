// Package chatclient is a Go client for the chat API: a typed REST client,
// the local conversation state a UI renders from, and a websocket stream
// that keeps that state current.
package chatclient

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

	"github.com/shinyyama/directchat/internal/model"
	"github.com/shinyyama/directchat/internal/service"
)

// APIError is a non-2xx answer carrying the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api error %d: %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type SendRequest struct {
	Text    string `json:"text,omitempty"`
	Image   string `json:"image,omitempty"`
	Video   string `json:"video,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Code: errResp.Error.Code, Message: errResp.Error.Message}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.doRequest(ctx, http.MethodGet, "/api/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Online(ctx context.Context) ([]string, error) {
	var resp struct {
		Online []string `json:"online"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/users/online", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Online, nil
}

func (c *Client) Sidebar(ctx context.Context) ([]service.SidebarEntry, error) {
	var entries []service.SidebarEntry
	if err := c.doRequest(ctx, http.MethodGet, "/api/messages/users", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) Conversation(ctx context.Context, userID string) ([]model.Message, error) {
	var msgs []model.Message
	if err := c.doRequest(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(userID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) Send(ctx context.Context, userID string, req SendRequest) (*model.Message, error) {
	var msg model.Message
	if err := c.doRequest(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(userID), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) MarkSeen(ctx context.Context, userID string) (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := c.doRequest(ctx, http.MethodPut, "/api/messages/seen/"+url.PathEscape(userID), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) Delete(ctx context.Context, messageID string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(messageID), nil, nil)
}

// StreamURL is the websocket endpoint with the token in the query string.
func (c *Client) StreamURL() string {
	base := c.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws?token=" + url.QueryEscape(c.Token)
}
