package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/crosspost/internal/middleware"
	"github.com/hitoshi/crosspost/internal/model"
	"github.com/hitoshi/crosspost/internal/post"
	"github.com/hitoshi/crosspost/internal/repository"
)

// dateParamLayout はクエリパラメータの日付形式。
const dateParamLayout = "2006-01-02"

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	// Compose は対象アカウントごとの投稿を作成しキューに投入する。
	Compose(ctx context.Context, userID string, accountIDs []string, doc model.Document) ([]*model.Post, error)
	// List はフィルタ条件に一致する投稿を取得する。
	List(ctx context.Context, userID string, filter repository.PostFilter) ([]*post.View, error)
}

// PostHandler は投稿管理のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// composeRequest は投稿作成リクエストのボディ。
// contentはリッチテキストエディタのドキュメントJSON。
type composeRequest struct {
	AccountIDs []string       `json:"account_ids"`
	Content    model.Document `json:"content"`
}

// composedPostResponse は作成された投稿のAPIレスポンス。
type composedPostResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Platform    string `json:"platform"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
}

// ComposePost は投稿作成を処理する。作成された投稿はqueuedステータスで
// キューに入り、バックグラウンドワーカーが公開する。
// POST /api/posts
func (h *PostHandler) ComposePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	posts, err := h.service.Compose(r.Context(), userID, req.AccountIDs, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]composedPostResponse, 0, len(posts))
	for _, p := range posts {
		responses = append(responses, composedPostResponse{
			ID:          p.ID,
			AccountID:   p.AccountID,
			Platform:    string(p.Platform),
			Status:      string(p.Status),
			StatusLabel: p.Status.Label(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"posts": responses,
	})
}

// ListPosts は投稿履歴を返す。
// GET /api/posts?start_date=2026-01-01&end_date=2026-01-31&statuses=queued,failed&platforms=bluesky&accounts=xxx
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	filter, apiErr := parsePostFilter(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	views, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"posts": views,
	})
}

// parsePostFilter はクエリパラメータから検索フィルタを組み立てる。
// start_date/end_dateは必須。end_dateは当日全体を含むよう終端を翌日0時にする。
func parsePostFilter(r *http.Request) (repository.PostFilter, *model.APIError) {
	var filter repository.PostFilter
	q := r.URL.Query()

	startParam := q.Get("start_date")
	endParam := q.Get("end_date")
	if startParam == "" || endParam == "" {
		return filter, model.NewValidationError("start_dateとend_dateを指定してください")
	}

	start, err := time.Parse(dateParamLayout, startParam)
	if err != nil {
		return filter, model.NewValidationError("start_dateはYYYY-MM-DD形式で指定してください")
	}
	end, err := time.Parse(dateParamLayout, endParam)
	if err != nil {
		return filter, model.NewValidationError("end_dateはYYYY-MM-DD形式で指定してください")
	}
	if end.Before(start) {
		return filter, model.NewValidationError("end_dateはstart_date以降の日付を指定してください")
	}

	filter.Start = start
	filter.End = end.AddDate(0, 0, 1)

	for _, s := range splitParam(q.Get("statuses")) {
		filter.Statuses = append(filter.Statuses, model.PostStatus(s))
	}
	for _, p := range splitParam(q.Get("platforms")) {
		filter.Platforms = append(filter.Platforms, model.Platform(p))
	}
	filter.AccountIDs = splitParam(q.Get("accounts"))

	return filter, nil
}

// splitParam はカンマ区切りのクエリパラメータを分割する。空要素は除外する。
func splitParam(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
