// Package bluesky はBluesky (AT Protocol) XRPC APIのクライアントを提供する。
// セッション作成、プロフィール取得、投稿レコードの送信を含む。
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/crosspost/internal/model"
)

const (
	// defaultAuthBaseURL は認証が必要なXRPCエンドポイントのベースURL。
	defaultAuthBaseURL = "https://bsky.social/xrpc/"
	// defaultPublicBaseURL は認証不要の公開XRPCエンドポイントのベースURL。
	defaultPublicBaseURL = "https://public.api.bsky.app/xrpc/"
)

// MaxPostLength はBluesky投稿の最大文字数。
const MaxPostLength = 300

// Session はcreateSessionで取得した認証済みセッションを表す。
type Session struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// Profile はアクターの公開プロフィールを表す。
type Profile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

// CreateRecordResult はcreateRecordのレスポンスを表す。
type CreateRecordResult struct {
	URI    string `json:"uri"`
	CID    string `json:"cid"`
	Commit struct {
		CID string `json:"cid"`
		Rev string `json:"rev"`
	} `json:"commit"`
}

// Client はBluesky XRPC APIのクライアント。
// エンドポイントはテスト用に差し替え可能。
type Client struct {
	httpClient    *http.Client
	logger        *slog.Logger
	authBaseURL   string
	publicBaseURL string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient:    httpClient,
		logger:        logger,
		authBaseURL:   defaultAuthBaseURL,
		publicBaseURL: defaultPublicBaseURL,
	}
}

// CreateSession はハンドルとアプリパスワードでセッションを作成する。
// 認証失敗（非200）の場合はAUTHENTICATION_FAILEDを返す。
func (c *Client) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	status, respBody, err := c.postJSON(ctx, c.authBaseURL+"com.atproto.server.createSession", "", body)
	if err != nil {
		return nil, model.NewAuthenticationError(err.Error())
	}
	if status != http.StatusOK {
		c.logger.Warn("Blueskyセッションの作成に失敗しました",
			slog.String("identifier", identifier),
			slog.Int("http_status", status),
		)
		return nil, model.NewAuthenticationError(errorMessage(respBody, "ハンドルまたはアプリパスワードが正しくありません"))
	}

	session := &Session{}
	if err := json.Unmarshal(respBody, session); err != nil {
		return nil, model.NewAuthenticationError(fmt.Sprintf("セッションレスポンスの解析に失敗しました: %v", err))
	}
	return session, nil
}

// GetProfile はアクターの公開プロフィールを取得する。
func (c *Client) GetProfile(ctx context.Context, actor string) (*Profile, error) {
	reqURL := c.publicBaseURL + "app.bsky.actor.getProfile?actor=" + url.QueryEscape(actor)

	status, respBody, err := c.getJSON(ctx, reqURL)
	if err != nil {
		return nil, model.NewRemoteSubmissionError(err.Error())
	}
	if status == http.StatusUnauthorized {
		return nil, model.NewAuthenticationError(errorMessage(respBody, "プロフィールへのアクセスが拒否されました"))
	}
	if status != http.StatusOK {
		return nil, model.NewRemoteSubmissionError(errorMessage(respBody, fmt.Sprintf("プロフィール取得がステータス %d を返しました", status)))
	}

	profile := &Profile{}
	if err := json.Unmarshal(respBody, profile); err != nil {
		return nil, model.NewRemoteSubmissionError(fmt.Sprintf("プロフィールレスポンスの解析に失敗しました: %v", err))
	}
	return profile, nil
}

// ResolveHandle はハンドルをDIDに解決する。
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	reqURL := c.publicBaseURL + "com.atproto.identity.resolveHandle?handle=" + url.QueryEscape(handle)

	status, respBody, err := c.getJSON(ctx, reqURL)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ハンドル %s の解決がステータス %d を返しました", handle, status)
	}

	var result struct {
		DID string `json:"did"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("resolveHandleレスポンスの解析に失敗しました: %w", err)
	}
	return result.DID, nil
}

// CreatePost は投稿レコードを送信する。
// メンションファセットのハンドルを送信前にDIDへ解決し、解決できなかった
// ファセットは落として本文のプレーンテキストとして送る。
// トランスポートが成功していてもレスポンス本文にerrorメンバが含まれる場合は
// 失敗として扱う。
func (c *Client) CreatePost(ctx context.Context, session *Session, record *PostRecord) (*CreateRecordResult, error) {
	record.Facets = c.resolveMentionFacets(ctx, record.Facets)

	body := map[string]any{
		"repo":       session.DID,
		"collection": "app.bsky.feed.post",
		"record":     record,
	}

	status, respBody, err := c.postJSON(ctx, c.authBaseURL+"com.atproto.repo.createRecord", session.AccessJwt, body)
	if err != nil {
		return nil, model.NewRemoteSubmissionError(err.Error())
	}
	if status != http.StatusOK {
		return nil, model.NewRemoteSubmissionError(errorMessage(respBody, fmt.Sprintf("createRecordがステータス %d を返しました", status)))
	}

	// 2xxでもボディにエラーが埋め込まれているケースがある
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &probe); err == nil {
		if _, ok := probe["error"]; ok {
			return nil, model.NewRemoteSubmissionError(errorMessage(respBody, "不明なエラー"))
		}
	}

	result := &CreateRecordResult{}
	if err := json.Unmarshal(respBody, result); err != nil {
		return nil, model.NewRemoteSubmissionError(fmt.Sprintf("createRecordレスポンスの解析に失敗しました: %v", err))
	}
	return result, nil
}

// resolveMentionFacets はメンションファセットのハンドルをDIDに解決する。
// 解決に失敗したファセットは警告ログを残して除外する。
func (c *Client) resolveMentionFacets(ctx context.Context, facets []Facet) []Facet {
	resolved := make([]Facet, 0, len(facets))
	for _, facet := range facets {
		keep := true
		for i, feature := range facet.Features {
			if feature.Type != featureMention {
				continue
			}
			did, err := c.ResolveHandle(ctx, feature.handle)
			if err != nil {
				c.logger.Warn("メンションのDID解決に失敗したためファセットを除外します",
					slog.String("handle", feature.handle),
					slog.String("error", err.Error()),
				)
				keep = false
				break
			}
			facet.Features[i].DID = did
		}
		if keep {
			resolved = append(resolved, facet)
		}
	}
	return resolved
}

// postJSON はJSONボディをPOSTし、ステータスコードとレスポンスボディを返す。
func (c *Client) postJSON(ctx context.Context, reqURL, accessJwt string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+accessJwt)
	}

	return c.do(req)
}

// getJSON はGETリクエストを実行し、ステータスコードとレスポンスボディを返す。
func (c *Client) getJSON(ctx context.Context, reqURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// errorMessage はXRPCエラーレスポンスからメッセージを取り出す。
// message → error の順に探し、どちらも無ければfallbackを返す。
func errorMessage(body []byte, fallback string) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return fallback
}
