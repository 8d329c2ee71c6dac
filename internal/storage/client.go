// Package storage はオブジェクトストレージREST APIのクライアントを提供する。
// アップロードは扱わず、アカウント削除時に保存済みオブジェクトを削除する用途に限る。
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

const storagePath = "/storage/v1"

// Object はバケット内のオブジェクト。
type Object struct {
	Name string `json:"name"`
}

// Client はオブジェクトストレージのクライアント。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientを生成する。サーバー側ではサービスロールキーを渡す。
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// List はprefix配下のオブジェクトを列挙する。
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	body := map[string]any{"prefix": prefix, "limit": 1000}
	var objects []Object
	if err := c.do(ctx, http.MethodPost, "/object/list/"+url.PathEscape(bucket), body, &objects); err != nil {
		return nil, err
	}
	return objects, nil
}

// Remove は指定パスのオブジェクトを削除する。pathsが空の場合は何もしない。
func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	body := map[string]any{"prefixes": paths}
	if err := c.do(ctx, http.MethodDelete, "/object/"+url.PathEscape(bucket), body, nil); err != nil {
		return err
	}
	c.logger.Info("オブジェクトを削除しました",
		slog.String("bucket", bucket),
		slog.Int("count", len(paths)),
	)
	return nil
}

// RemovePrefix はprefix配下のオブジェクトをすべて削除する。
func (c *Client) RemovePrefix(ctx context.Context, bucket, prefix string) error {
	objects, err := c.List(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(objects))
	for _, o := range objects {
		paths = append(paths, prefix+"/"+o.Name)
	}
	return c.Remove(ctx, bucket, paths)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("リクエストボディのエンコードに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+storagePath+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ストレージAPIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("ストレージAPIの呼び出しに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ストレージAPIがステータス %d を返しました", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗: %w", err)
	}
	return nil
}
