// Package publish は投稿のバックグラウンド公開処理を提供する。
// スケジューラ、リコンサイラを含む。
package publish

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/crosspost/internal/metrics"
	"github.com/hitoshi/crosspost/internal/model"
	"github.com/hitoshi/crosspost/internal/publisher"
)

// PostQueue は公開対象投稿の取得とステータス更新のインターフェース。
type PostQueue interface {
	// ClaimQueued はqueued状態の投稿を最大limit件クレームし、
	// runningに遷移させたうえで返す。
	ClaimQueued(ctx context.Context, limit int) ([]*model.Post, error)
	UpdateStatus(ctx context.Context, postID string, status model.PostStatus) error
}

// AccountFinder は投稿に紐づくアカウントの検索インターフェース。
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
}

// PublisherResolver はプラットフォームに対応するパブリッシャーの解決
// インターフェース。publisher.Registryを抽象化する。
type PublisherResolver interface {
	Resolve(platform model.Platform) (publisher.Publisher, error)
}

// Scheduler は投稿公開のスケジューリングと並列制御を行う。
// 一定間隔のティッカーでqueued投稿をクレームし、
// semaphoreパターンで最大並列数を制御しながら公開を実行する。
type Scheduler struct {
	queue          PostQueue
	accounts       AccountFinder
	publishers     PublisherResolver
	collector      metrics.MetricsCollector
	logger         *slog.Logger
	claimLimit     int
	maxConcurrency int
	publishTimeout time.Duration
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5、claimLimitが0以下の場合は
// デフォルト値20、publishTimeoutが0以下の場合はデフォルト値30秒を使用する。
func NewScheduler(
	queue PostQueue,
	accounts AccountFinder,
	publishers PublisherResolver,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	claimLimit int,
	maxConcurrency int,
	publishTimeout time.Duration,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	if claimLimit <= 0 {
		claimLimit = 20
	}
	if publishTimeout <= 0 {
		publishTimeout = 30 * time.Second
	}
	return &Scheduler{
		queue:          queue,
		accounts:       accounts,
		publishers:     publishers,
		collector:      collector,
		logger:         logger,
		claimLimit:     claimLimit,
		maxConcurrency: maxConcurrency,
		publishTimeout: publishTimeout,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("公開スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
		slog.Int("claim_limit", s.claimLimit),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("公開サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("公開スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("公開サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はqueued投稿を1回クレームし、並列で公開を実行する。
// semaphoreパターンで最大並列数を制御する。個々の投稿の失敗は
// 他の投稿の公開に影響しない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	// queued投稿をクレーム（FOR UPDATE SKIP LOCKED）
	posts, err := s.queue.ClaimQueued(ctx, s.claimLimit)
	if err != nil {
		return err
	}

	if len(posts) == 0 {
		return nil
	}

	s.logger.Info("公開サイクルを開始します",
		slog.Int("post_count", len(posts)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, post := range posts {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(p *model.Post) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			s.publishOne(ctx, p)
		}(post)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("公開サイクルが完了しました",
		slog.Int("post_count", len(posts)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// publishOne は1件の投稿を公開する。アカウント不在や未対応プラット
// フォームの場合はfailedに遷移させ、running状態のまま放置しない。
func (s *Scheduler) publishOne(ctx context.Context, post *model.Post) {
	start := time.Now()

	account, err := s.accounts.FindByID(ctx, post.AccountID)
	if err != nil {
		s.failPost(ctx, post, "account_lookup", err)
		return
	}
	if account == nil {
		s.failPost(ctx, post, "account_missing", model.NewAccountNotFoundError(post.AccountID))
		return
	}

	pub, err := s.publishers.Resolve(post.Platform)
	if err != nil {
		s.failPost(ctx, post, "unsupported_platform", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	if err := pub.Publish(pubCtx, account, post, post.Content, nil); err != nil {
		// パブリッシャー自身がfailedへの遷移とログ出力を行う
		s.collector.RecordPublishFailure(string(post.Platform), "publish")
		return
	}

	s.collector.RecordPublishSuccess(string(post.Platform))
	s.collector.RecordPublishLatency(time.Since(start))
}

// failPost は投稿をfailedに遷移させ、失敗を記録する。
func (s *Scheduler) failPost(ctx context.Context, post *model.Post, reason string, cause error) {
	s.logger.Error("投稿の公開に失敗しました",
		slog.String("post_id", post.ID),
		slog.String("reason", reason),
		slog.String("error", cause.Error()),
	)
	s.collector.RecordPublishFailure(string(post.Platform), reason)

	// コンテキストがすでにキャンセルされていてもfailedへの遷移は完了させる
	if err := s.queue.UpdateStatus(context.WithoutCancel(ctx), post.ID, model.PostStatusFailed); err != nil {
		s.logger.Error("投稿ステータスの更新に失敗しました",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
	}
}
