package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xiaot623/livechat/internal/domain"
)

// APIError is a non-2xx reply from the chat API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api returned status %d: %s", e.Status, e.Message)
}

// Client is an HTTP client for the chat API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API mounted at baseURL, for example
// http://localhost:8888/api/v2.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StartChat opens a new chat as its client.
func (c *Client) StartChat(ctx context.Context, nickname, subject string) (domain.RequestChatResponse, error) {
	var resp domain.RequestChatResponse
	err := c.do(ctx, http.MethodPost, "/chats", domain.RequestChatRequest{
		OperationName: domain.OperationRequestChat,
		Nickname:      nickname,
		Subject:       subject,
	}, &resp)
	return resp, err
}

// JoinChat attaches to an existing chat with the given role.
func (c *Client) JoinChat(ctx context.Context, nickname, chatID string, role domain.Role) (domain.RequestChatResponse, error) {
	var resp domain.RequestChatResponse
	err := c.do(ctx, http.MethodPost, "/chats", domain.RequestChatRequest{
		OperationName: domain.OperationRequestChat,
		Nickname:      nickname,
		ChatID:        chatID,
		Role:          role,
	}, &resp)
	return resp, err
}

// ListChats returns every chat known to the server.
func (c *Client) ListChats(ctx context.Context) ([]domain.ChatSummary, error) {
	var resp domain.ChatListResponse
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.ChatList, nil
}

// GetChat returns the chat snapshot.
func (c *Client) GetChat(ctx context.Context, chatID string) (domain.Chat, error) {
	var resp domain.Chat
	err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID), nil, &resp)
	return resp, err
}

// Transcript returns the messages at or after index.
func (c *Client) Transcript(ctx context.Context, chatID string, index int) (domain.TranscriptResponse, error) {
	var resp domain.TranscriptResponse
	path := "/chats/" + url.PathEscape(chatID) + "/messages?index=" + strconv.Itoa(index)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Operate runs a named chat operation as participant pid.
func (c *Client) Operate(ctx context.Context, chatID string, req domain.ChatOperationRequest) error {
	var resp domain.StatusResponse
	return c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID), req, &resp)
}

// SendMessage posts a text message.
func (c *Client) SendMessage(ctx context.Context, chatID, pid, text string) error {
	return c.Operate(ctx, chatID, domain.ChatOperationRequest{
		OperationName: domain.OperationSendMessage,
		Text:          text,
		ContentType:   domain.ContentTypeText,
		PID:           pid,
	})
}

// SetTyping sends a start or stop typing notification.
func (c *Client) SetTyping(ctx context.Context, chatID, pid string, typing bool) error {
	op := domain.OperationStopTyping
	if typing {
		op = domain.OperationStartTyping
	}
	return c.Operate(ctx, chatID, domain.ChatOperationRequest{OperationName: op, PID: pid})
}

// Complete ends the chat.
func (c *Client) Complete(ctx context.Context, chatID, pid string) error {
	return c.Operate(ctx, chatID, domain.ChatOperationRequest{
		OperationName: domain.OperationCompleteChat,
		PID:           pid,
	})
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr domain.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
