package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/crosspost/internal/bluesky"
	"github.com/hitoshi/crosspost/internal/convert"
	"github.com/hitoshi/crosspost/internal/model"
)

// PostStore はパブリッシャーが必要とする投稿状態更新のインターフェース。
// repository.PostRepositoryの部分集合として定義する。
type PostStore interface {
	// UpdateStatus は投稿の状態を更新する。
	UpdateStatus(ctx context.Context, id string, status model.PostStatus) error
	// MarkPublished は投稿をpublishedに遷移させ、プラットフォーム側の
	// 投稿IDと配信日時を記録する。
	MarkPublished(ctx context.Context, id, remotePostID string, publishedAt time.Time) error
}

// BlueskyAPI はBluesky XRPC APIのうちパブリッシャーが使用する操作。
type BlueskyAPI interface {
	CreateSession(ctx context.Context, identifier, password string) (*bluesky.Session, error)
	CreatePost(ctx context.Context, session *bluesky.Session, record *bluesky.PostRecord) (*bluesky.CreateRecordResult, error)
}

// CredentialDecrypter は保存済み資格情報の復号インターフェース。
type CredentialDecrypter interface {
	Decrypt(encoded string) (string, error)
}

// BlueskyPublisher はBlueskyへの配信を実装する。
//
// 配信フロー: running遷移 → 認証 → セグメント分割 → レコード組み立て →
// 送信 → 終端状態への遷移。認証失敗時はリモートへの変更を一切行わずに
// 中断する。このコンポーネントは自動リトライを行わない。リトライは
// 外側のキューの責務。
type BlueskyPublisher struct {
	posts  PostStore
	api    BlueskyAPI
	cipher CredentialDecrypter
	logger *slog.Logger
}

// NewBlueskyPublisher はBlueskyPublisherを生成する。
func NewBlueskyPublisher(posts PostStore, api BlueskyAPI, cipher CredentialDecrypter, logger *slog.Logger) *BlueskyPublisher {
	return &BlueskyPublisher{
		posts:  posts,
		api:    api,
		cipher: cipher,
		logger: logger,
	}
}

// Publish は投稿をBlueskyへ配信する。
// 失敗時は投稿をfailedに遷移させた上でエラーを返す（握り潰さない）。
func (p *BlueskyPublisher) Publish(ctx context.Context, account *model.Account, post *model.Post, doc model.Document, media []model.Media) error {
	if err := p.posts.UpdateStatus(ctx, post.ID, model.PostStatusRunning); err != nil {
		return fmt.Errorf("投稿のrunning遷移に失敗しました: %w", err)
	}

	if err := p.publish(ctx, account, post, doc); err != nil {
		p.logger.Error("Bluesky投稿の配信に失敗しました",
			slog.String("account_id", account.ID),
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
		// 終端状態の書き込みはタイムアウトやキャンセルの影響を受けない
		// コンテキストで行う。期限切れが失敗の原因だった場合でも投稿を
		// runningのまま残さない。
		if uerr := p.posts.UpdateStatus(context.WithoutCancel(ctx), post.ID, model.PostStatusFailed); uerr != nil {
			p.logger.Error("投稿のfailed遷移に失敗しました",
				slog.String("post_id", post.ID),
				slog.String("error", uerr.Error()),
			)
		}
		return err
	}

	return nil
}

func (p *BlueskyPublisher) publish(ctx context.Context, account *model.Account, post *model.Post, doc model.Document) error {
	password, err := p.cipher.Decrypt(account.AccessToken)
	if err != nil {
		return model.NewAuthenticationError(fmt.Sprintf("資格情報の復号に失敗しました: %v", err))
	}

	session, err := p.api.CreateSession(ctx, account.Handle, password)
	if err != nil {
		return err
	}

	// セグメント順のままビルダーに畳み込む。各セグメントはちょうど1回ずつ
	// 本文に寄与する。
	builder := bluesky.NewTextBuilder()
	for _, seg := range convert.ToSegments(doc, bluesky.MaxPostLength) {
		switch seg.Kind {
		case model.SegmentText, model.SegmentSpace:
			builder.Text(seg.Value)
		case model.SegmentMention:
			builder.Mention(seg.Value)
		case model.SegmentHashtag:
			builder.Tag(seg.Value)
		case model.SegmentLink:
			builder.Link(seg.Value)
		case model.SegmentNewLine:
			builder.NewLine()
		}
	}

	result, err := p.api.CreatePost(ctx, session, builder.Build())
	if err != nil {
		return err
	}

	// リモート送信成功後のpublished遷移も終端状態の書き込み。
	// 送信直後にコンテキストが期限切れになっても記録を完了させる。
	if err := p.posts.MarkPublished(context.WithoutCancel(ctx), post.ID, result.Commit.Rev, time.Now()); err != nil {
		return fmt.Errorf("投稿のpublished遷移に失敗しました: %w", err)
	}

	p.logger.Info("Bluesky投稿を配信しました",
		slog.String("account_id", account.ID),
		slog.String("post_id", post.ID),
		slog.String("remote_post_id", result.Commit.Rev),
	)
	return nil
}

// compile-time interface check
var _ Publisher = (*BlueskyPublisher)(nil)
