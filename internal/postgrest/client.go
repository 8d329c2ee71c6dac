// Package postgrest はPostgRESTテーブルAPIのクライアントを提供する。
// ユーザーのアクセストークンを付与したHTTPクライアントで呼び出すことで、行レベルセキュリティが適用される。
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/salonlink/internal/model"
)

const (
	restPath         = "/rest/v1"
	maxErrorBodySize = 64 << 10

	// codeNoRows は単一行取得で行が0件だったことを示すPostgRESTのエラーコード。
	codeNoRows = "PGRST116"
	// codeUniqueViolation はPostgreSQLの一意制約違反。
	codeUniqueViolation = "23505"
)

// errorBody はPostgRESTのエラーレスポンス。
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// Client はPostgRESTのテーブルに対するselect/insert/upsert/update/deleteを実行する。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientを生成する。
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

// Request はテーブルへの1リクエストを表す。
type Request struct {
	Method string
	Table  string
	Query  url.Values
	Body   any
	// Single はレスポンスを単一オブジェクトとして要求する。0件の場合はmodel.ErrNotFoundを返す。
	Single bool
	// Prefer はPreferヘッダーの値。
	Prefer []string
}

// Do はリクエストを実行し、outにJSONをデコードする。
// 0件の単一取得はmodel.ErrNotFound、一意制約違反はmodel.ErrDuplicateを返す。
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	reqURL := c.baseURL + restPath + "/" + r.Table
	if len(r.Query) > 0 {
		reqURL += "?" + r.Query.Encode()
	}

	var reader io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	// oauth2のクライアントを使う場合はユーザーのアクセストークンで上書きされる
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	for _, p := range r.Prefer {
		req.Header.Add("Prefer", p)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("テーブルAPIの呼び出しに失敗しました",
			slog.String("table", r.Table),
			slog.String("method", r.Method),
			slog.String("error", err.Error()),
		)
		return model.NewBackendUnavailableError("the data service is unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return c.translate(r, resp.StatusCode, data)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("レスポンスJSONのパースに失敗: %w", err)
	}
	return nil
}

// translate はエラーレスポンスをセンチネルエラーまたはmodel.APIErrorに変換する。
func (c *Client) translate(r Request, status int, data []byte) error {
	var b errorBody
	_ = json.Unmarshal(data, &b)

	switch {
	case b.Code == codeNoRows:
		return model.ErrNotFound
	case b.Code == codeUniqueViolation || status == http.StatusConflict:
		return model.ErrDuplicate
	}

	c.logger.Warn("テーブルAPIがエラーステータスを返しました",
		slog.String("table", r.Table),
		slog.String("method", r.Method),
		slog.Int("http_status", status),
		slog.String("code", b.Code),
		slog.String("message", b.Message),
	)

	switch {
	case status == http.StatusUnauthorized:
		return model.NewUnauthorizedError()
	case status == http.StatusForbidden:
		return model.NewForbiddenError()
	case status >= 500:
		return model.NewBackendUnavailableError(http.StatusText(status))
	default:
		return fmt.Errorf("テーブルAPIがステータス %d を返しました: %s", status, b.Code)
	}
}

// Eq はPostgRESTのeqフィルタ値を返す。
func Eq(v string) string {
	return "eq." + v
}
