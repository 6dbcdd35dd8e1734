package model

import "time"

// PostStatus は投稿のライフサイクル状態を表す。
type PostStatus string

const (
	// PostStatusDraft は下書き状態。
	PostStatusDraft PostStatus = "draft"
	// PostStatusQueued は配信待ち状態。
	PostStatusQueued PostStatus = "queued"
	// PostStatusRunning は配信処理中状態。
	PostStatusRunning PostStatus = "running"
	// PostStatusPublished は配信完了状態（終端）。
	PostStatusPublished PostStatus = "published"
	// PostStatusScheduled は予約投稿状態。将来の遅延配信用に予約されており、
	// 現在の配信パスでは使用されない。
	PostStatusScheduled PostStatus = "scheduled"
	// PostStatusFailed は配信失敗状態（終端）。レコードは削除せず保持し、
	// 調査と手動リトライを可能にする。
	PostStatusFailed PostStatus = "failed"
)

// Label はUI表示用の状態名を返す。
func (s PostStatus) Label() string {
	switch s {
	case PostStatusDraft:
		return "Draft"
	case PostStatusQueued:
		return "Queued"
	case PostStatusRunning:
		return "Running"
	case PostStatusPublished:
		return "Published"
	case PostStatusScheduled:
		return "Scheduled"
	case PostStatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

// Description はUI表示用の状態説明を返す。
func (s PostStatus) Description() string {
	switch s {
	case PostStatusDraft:
		return "投稿は下書きです。編集して後から配信できます。"
	case PostStatusQueued:
		return "投稿は配信待ちです。まもなく配信されます。"
	case PostStatusRunning:
		return "投稿を配信しています。まもなく完了します。"
	case PostStatusPublished:
		return "投稿は配信されました。"
	case PostStatusScheduled:
		return "投稿は指定日時に配信される予定です。"
	case PostStatusFailed:
		return "投稿の配信に失敗しました。再度お試しください。"
	default:
		return ""
	}
}

// Valid は既知の状態かどうかを返す。
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusQueued, PostStatusRunning,
		PostStatusPublished, PostStatusScheduled, PostStatusFailed:
		return true
	default:
		return false
	}
}

// Post は1つの(文書, アカウント)組に対する配信単位を表す。
// アカウントに従属し、アカウント削除時にCASCADE削除される。
// Contentは作成時点の文書の不変コピー。
type Post struct {
	ID           string
	UserID       string
	AccountID    string
	Platform     Platform
	Content      Document
	Status       PostStatus
	RemotePostID string // プラットフォーム側で採番された投稿ID
	PublishedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Media は投稿に添付されるメディアを表す。
type Media struct {
	ID         string
	PostID     string
	MediaType  string
	URL        string
	Dimensions map[string]int
	FileSize   int64
	MimeType   string
	CreatedAt  time.Time
}
