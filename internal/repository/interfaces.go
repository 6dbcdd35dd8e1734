// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/crosspost/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// AccountRepository は接続済みアカウントの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindDuplicate は(所有者, 外部プロファイル参照, プラットフォーム, ハンドル)が
	// 一致する既存アカウントを検索する。見つからない場合はnilを返す。
	// 接続前の重複チェックに使用する。
	FindDuplicate(ctx context.Context, userID, sociableID, sociableType string, platform model.Platform, handle string) (*model.Account, error)

	// Create はアカウントを作成する。一意制約違反はDBレベルのバックストップと
	// してエラーになる。
	Create(ctx context.Context, account *model.Account) error

	// ListByUserID はユーザーの接続済みアカウント一覧を作成日時順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Account, error)

	// DeleteByID は指定IDのアカウントを削除する。
	// 関連する投稿はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// PostFilter は投稿照会の絞り込み条件を表す。
// StartとEndは必須。それ以外は空の場合に絞り込みなし。
type PostFilter struct {
	Start      time.Time
	End        time.Time
	Statuses   []model.PostStatus
	Platforms  []model.Platform
	AccountIDs []string
}

// PostRepository は投稿データの永続化インターフェース。
// queuedステータスの行の集合が配信キューを兼ねる。
type PostRepository interface {
	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// CreateBatch は複数の投稿を単一トランザクションで作成する。
	// 1件でも失敗した場合は全件ロールバックされる。
	CreateBatch(ctx context.Context, posts []*model.Post) error

	// UpdateStatus は投稿の状態を更新する。
	UpdateStatus(ctx context.Context, id string, status model.PostStatus) error

	// MarkPublished は投稿をpublishedに遷移させ、プラットフォーム側の
	// 投稿IDと配信日時を記録する。
	MarkPublished(ctx context.Context, id, remotePostID string, publishedAt time.Time) error

	// ClaimQueued はqueuedの投稿を最大limit件、FOR UPDATE SKIP LOCKEDで
	// 排他的に取得し、同一トランザクション内でrunningへ遷移させて返す。
	// 複数ワーカーが同じ投稿を取得することはない。
	ClaimQueued(ctx context.Context, limit int) ([]*model.Post, error)

	// RequeueStuckRunning はolderThanより前から更新のないrunningの投稿を
	// queuedへ戻し、戻した件数を返す。ワーカークラッシュからの回復用。
	RequeueStuckRunning(ctx context.Context, olderThan time.Time) (int, error)

	// ListByUser はユーザーの投稿をフィルタ条件で絞り込んで作成日時降順で返す。
	ListByUser(ctx context.Context, userID string, filter PostFilter) ([]*model.Post, error)
}
