// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/crosspost/internal/middleware"
	"github.com/hitoshi/crosspost/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// List は接続済みアカウント一覧を取得する。
	List(ctx context.Context, userID string) ([]*model.Account, error)
	// ConnectBluesky はBlueskyアカウントを接続する。
	ConnectBluesky(ctx context.Context, userID, handle, appPassword string) (*model.Account, error)
	// Disconnect はアカウントの接続を解除する。
	Disconnect(ctx context.Context, userID, accountID string) error
}

// AccountHandler はアカウント管理のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// connectBlueskyRequest はBlueskyアカウント接続リクエストのボディ。
type connectBlueskyRequest struct {
	Handle      string `json:"handle"`
	AppPassword string `json:"app_password"`
}

// accountResponse はアカウント情報のAPIレスポンス。
// 資格情報は含めない。
type accountResponse struct {
	ID              string `json:"id"`
	Platform        string `json:"platform"`
	PlatformLabel   string `json:"platform_label"`
	Name            string `json:"name"`
	Handle          string `json:"handle"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListAccounts は接続済みアカウント一覧を返す。
// GET /api/accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	accounts, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		responses = append(responses, toAccountResponse(a))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accounts": responses,
	})
}

// ConnectBluesky はBlueskyアカウント接続を処理する。
// POST /api/accounts/bluesky
func (h *AccountHandler) ConnectBluesky(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req connectBlueskyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	account, err := h.service.ConnectBluesky(r.Context(), userID, req.Handle, req.AppPassword)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAccountResponse(account))
}

// DisconnectAccount はアカウント接続解除を処理する。
// DELETE /api/accounts/:id
func (h *AccountHandler) DisconnectAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	accountID := chi.URLParam(r, "id")

	if err := h.service.Disconnect(r.Context(), userID, accountID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toAccountResponse はAccountモデルをAPIレスポンスに変換する。
func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:              a.ID,
		Platform:        string(a.Platform),
		PlatformLabel:   a.Platform.Label(),
		Name:            a.Name,
		Handle:          a.Handle,
		ProfileImageURL: a.ProfileImageURL,
	}
}

// writeUnauthorizedResponse は401レスポンスを統一フォーマットで書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeDuplicateAccount:
		return http.StatusConflict
	case model.ErrCodeAccountNotFound, model.ErrCodePostNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeAuthenticationFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeUnsupportedPlatform:
		return http.StatusUnprocessableEntity
	case model.ErrCodeRemoteSubmissionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
