package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/crosspost/internal/metrics"
)

// StuckRequeuer はスタックした投稿の再キューインターフェース。
type StuckRequeuer interface {
	// RequeueStuckRunning はolderThanより前に更新されたrunning投稿を
	// queuedに戻し、処理件数を返す。
	RequeueStuckRunning(ctx context.Context, olderThan time.Time) (int, error)
}

// Reconciler はワーカーのクラッシュ等でrunningのまま残った投稿を
// 検出し、queuedに戻して再処理可能にする。
type Reconciler struct {
	posts     StuckRequeuer
	collector metrics.MetricsCollector
	logger    *slog.Logger
	threshold time.Duration
}

// NewReconciler はReconcilerの新しいインスタンスを生成する。
// thresholdが0以下の場合はデフォルト値10分を使用する。
func NewReconciler(posts StuckRequeuer, collector metrics.MetricsCollector, logger *slog.Logger, threshold time.Duration) *Reconciler {
	if threshold <= 0 {
		threshold = 10 * time.Minute
	}
	return &Reconciler{
		posts:     posts,
		collector: collector,
		logger:    logger,
		threshold: threshold,
	}
}

// Run はスタック投稿の再キューを1回実行する。
func (r *Reconciler) Run(ctx context.Context) error {
	olderThan := time.Now().Add(-r.threshold)

	count, err := r.posts.RequeueStuckRunning(ctx, olderThan)
	if err != nil {
		return err
	}

	if count > 0 {
		r.logger.Warn("スタックした投稿を再キューしました",
			slog.Int("count", count),
			slog.Duration("threshold", r.threshold),
		)
		r.collector.RecordPostsRequeued(count)
	}
	return nil
}
