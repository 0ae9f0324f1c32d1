package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/boardkeeper/pkg/api"
)

//go:generate moq -out client_mock.go . ClientAPI

// ClientAPI определяет интерфейс Persistence Bridge: write-through
// в реляционный backend и источник начального состояния при cold load.
type ClientAPI interface {
	// GetSnapshot загружает cold-load снимок workspace
	GetSnapshot(ctx context.Context, workspaceID string) (*api.SnapshotResponse, error)

	// UpsertNode создает или обновляет узел (идемпотентный upsert по id)
	UpsertNode(ctx context.Context, workspaceID string, node *api.Node) error

	// DeleteNode удаляет узел
	DeleteNode(ctx context.Context, workspaceID, nodeID string) error

	// UpsertConnection создает или обновляет соединение
	UpsertConnection(ctx context.Context, workspaceID string, conn *api.Connection) error

	// DeleteConnection удаляет соединение
	DeleteConnection(ctx context.Context, workspaceID, connID string) error
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент.
// token — workspace access token, подставляется в Authorization header.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// GetSnapshot загружает cold-load снимок workspace вместе с checkpoint
func (c *Client) GetSnapshot(ctx context.Context, workspaceID string) (*api.SnapshotResponse, error) {
	var resp api.SnapshotResponse
	path := fmt.Sprintf("/api/v1/workspaces/%s/snapshot", url.PathEscape(workspaceID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get snapshot request failed: %w", err)
	}
	return &resp, nil
}

// UpsertNode создает или обновляет узел по id.
// PATCH с upsert-семантикой: повторная запись того же состояния идемпотентна.
func (c *Client) UpsertNode(ctx context.Context, workspaceID string, node *api.Node) error {
	path := fmt.Sprintf("/api/v1/workspaces/%s/nodes/%s",
		url.PathEscape(workspaceID), url.PathEscape(node.ID))
	if err := c.doRequest(ctx, http.MethodPatch, path, node, nil); err != nil {
		return fmt.Errorf("upsert node request failed: %w", err)
	}
	return nil
}

// DeleteNode удаляет узел
func (c *Client) DeleteNode(ctx context.Context, workspaceID, nodeID string) error {
	path := fmt.Sprintf("/api/v1/workspaces/%s/nodes/%s",
		url.PathEscape(workspaceID), url.PathEscape(nodeID))
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete node request failed: %w", err)
	}
	return nil
}

// UpsertConnection создает или обновляет соединение по id
func (c *Client) UpsertConnection(ctx context.Context, workspaceID string, conn *api.Connection) error {
	path := fmt.Sprintf("/api/v1/workspaces/%s/connections/%s",
		url.PathEscape(workspaceID), url.PathEscape(conn.ID))
	if err := c.doRequest(ctx, http.MethodPatch, path, conn, nil); err != nil {
		return fmt.Errorf("upsert connection request failed: %w", err)
	}
	return nil
}

// DeleteConnection удаляет соединение
func (c *Client) DeleteConnection(ctx context.Context, workspaceID, connID string) error {
	path := fmt.Sprintf("/api/v1/workspaces/%s/connections/%s",
		url.PathEscape(workspaceID), url.PathEscape(connID))
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete connection request failed: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
