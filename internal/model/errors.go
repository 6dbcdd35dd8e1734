package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, account, post, platform, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed       = "VALIDATION_FAILED"
	ErrCodeDuplicateAccount       = "DUPLICATE_ACCOUNT"
	ErrCodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	ErrCodePostNotFound           = "POST_NOT_FOUND"
	ErrCodeUnsupportedPlatform    = "UNSUPPORTED_PLATFORM"
	ErrCodeAuthenticationFailed   = "AUTHENTICATION_FAILED"
	ErrCodeRemoteSubmissionFailed = "REMOTE_SUBMISSION_FAILED"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewDuplicateAccountError はアカウント重複エラーを生成する。
func NewDuplicateAccountError(platform Platform, handle string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateAccount,
		Message:  fmt.Sprintf("%sのアカウント %s は既に接続されています。", platform.Label(), handle),
		Category: "account",
		Action:   "接続済みアカウント一覧を確認してください。",
	}
}

// NewAccountNotFoundError はアカウント未検出エラーを生成する。
func NewAccountNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("指定されたアカウントが見つかりません: %s", accountID),
		Category: "account",
		Action:   "アカウントIDを確認してください。",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "post",
		Action:   "投稿IDを確認してください。",
	}
}

// NewUnsupportedPlatformError は未対応プラットフォームエラーを生成する。
func NewUnsupportedPlatformError(platform Platform) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedPlatform,
		Message:  fmt.Sprintf("未対応のプラットフォームです: %s", platform),
		Category: "platform",
		Action:   "対応しているプラットフォームを指定してください。",
	}
}

// NewAuthenticationError はプラットフォーム認証エラーを生成する。
func NewAuthenticationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  fmt.Sprintf("プラットフォームの認証に失敗しました: %s", reason),
		Category: "auth",
		Action:   "ハンドルとアプリパスワードを確認して再接続してください。",
	}
}

// NewRemoteSubmissionError はリモート投稿失敗エラーを生成する。
func NewRemoteSubmissionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteSubmissionFailed,
		Message:  fmt.Sprintf("プラットフォームへの投稿送信に失敗しました: %s", reason),
		Category: "platform",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", userID),
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}
