// Package publisher は投稿のプラットフォーム別配信を提供する。
// Publisherインターフェース、プラットフォーム→Publisherのレジストリ、
// Bluesky実装を含む。
package publisher

import (
	"context"

	"github.com/hitoshi/crosspost/internal/model"
)

// Publisher は1プラットフォームへの配信を実装する。
// プラットフォームを追加する場合はこのインターフェースを実装し、
// レジストリに登録するだけでよい。
type Publisher interface {
	// Publish は1件の投稿を配信し、終端状態まで遷移させる。
	// 呼び出しが返った時点でPostはpublishedまたはfailedのいずれかであり、
	// runningのまま残ることはない。失敗時はエラーを呼び出し元に返す。
	Publish(ctx context.Context, account *model.Account, post *model.Post, doc model.Document, media []model.Media) error
}

// Registry はプラットフォーム識別子からPublisherを引く明示的なマップ。
// プロセス起動時に構築し、配信ワーカーへ参照で渡す。
// 検索のみで副作用は持たない。
type Registry struct {
	publishers map[model.Platform]Publisher
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{
		publishers: make(map[model.Platform]Publisher),
	}
}

// Register はプラットフォームに対応するPublisherを登録する。
// 同一プラットフォームへの再登録は上書きになる。
func (r *Registry) Register(platform model.Platform, pub Publisher) {
	r.publishers[platform] = pub
}

// Resolve はプラットフォームに対応するPublisherを返す。
// 未知の識別子の場合はUNSUPPORTED_PLATFORMエラーを返す。
func (r *Registry) Resolve(platform model.Platform) (Publisher, error) {
	pub, ok := r.publishers[platform]
	if !ok {
		return nil, model.NewUnsupportedPlatformError(platform)
	}
	return pub, nil
}
