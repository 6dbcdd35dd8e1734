// Package post は投稿の作成と履歴取得のビジネスロジックを提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/crosspost/internal/convert"
	"github.com/hitoshi/crosspost/internal/metrics"
	"github.com/hitoshi/crosspost/internal/model"
	"github.com/hitoshi/crosspost/internal/repository"
)

// View は一覧表示用の投稿ビュー。本文はプレーンテキストに平坦化済み。
type View struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	AccountHandle string     `json:"account_handle"`
	Platform      string     `json:"platform"`
	PlatformLabel string     `json:"platform_label"`
	Text          string     `json:"text"`
	Status        string     `json:"status"`
	StatusLabel   string     `json:"status_label"`
	RemotePostID  string     `json:"remote_post_id,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Service は投稿の作成・一覧のビジネスロジックを提供する。
type Service struct {
	posts     repository.PostRepository
	accounts  repository.AccountRepository
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(posts repository.PostRepository, accounts repository.AccountRepository, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	return &Service{
		posts:     posts,
		accounts:  accounts,
		collector: collector,
		logger:    logger,
	}
}

// Compose はリッチテキストドキュメントから対象アカウントごとの投稿を
// 作成し、queuedステータスでキューに投入する。全件を単一トランザクションで
// 作成するため、部分的な成功は発生しない。
func (s *Service) Compose(ctx context.Context, userID string, accountIDs []string, doc model.Document) ([]*model.Post, error) {
	if len(accountIDs) == 0 {
		return nil, model.NewValidationError("投稿先のアカウントを1つ以上選択してください")
	}
	if doc.IsEmpty() {
		return nil, model.NewValidationError("投稿内容を入力してください")
	}

	now := time.Now()
	posts := make([]*model.Post, 0, len(accountIDs))
	for _, accountID := range accountIDs {
		account, err := s.accounts.FindByID(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("アカウントの検索に失敗しました: %w", err)
		}
		if account == nil || account.UserID != userID {
			return nil, model.NewAccountNotFoundError(accountID)
		}

		posts = append(posts, &model.Post{
			ID:        uuid.New().String(),
			UserID:    userID,
			AccountID: account.ID,
			Platform:  account.Platform,
			Content:   doc,
			Status:    model.PostStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.posts.CreateBatch(ctx, posts); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	s.collector.RecordPostsQueued(len(posts))
	s.logger.Info("投稿をキューに投入しました",
		slog.String("user_id", userID),
		slog.Int("count", len(posts)),
	)
	return posts, nil
}

// List はフィルタ条件に一致するユーザーの投稿を新しい順に返す。
// 期間（Start/End）は必須。
func (s *Service) List(ctx context.Context, userID string, filter repository.PostFilter) ([]*View, error) {
	if filter.Start.IsZero() || filter.End.IsZero() {
		return nil, model.NewValidationError("期間（開始日・終了日）を指定してください")
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, model.NewValidationError(fmt.Sprintf("不正なステータスです: %s", st))
		}
	}
	for _, p := range filter.Platforms {
		if !p.Valid() {
			return nil, model.NewValidationError(fmt.Sprintf("不正なプラットフォームです: %s", p))
		}
	}

	posts, err := s.posts.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}

	handles := make(map[string]string)
	views := make([]*View, 0, len(posts))
	for _, p := range posts {
		handle, ok := handles[p.AccountID]
		if !ok {
			account, err := s.accounts.FindByID(ctx, p.AccountID)
			if err != nil {
				return nil, fmt.Errorf("アカウントの検索に失敗しました: %w", err)
			}
			if account != nil {
				handle = account.Handle
			}
			handles[p.AccountID] = handle
		}

		views = append(views, &View{
			ID:            p.ID,
			AccountID:     p.AccountID,
			AccountHandle: handle,
			Platform:      string(p.Platform),
			PlatformLabel: p.Platform.Label(),
			Text:          convert.FlattenText(p.Content),
			Status:        string(p.Status),
			StatusLabel:   p.Status.Label(),
			RemotePostID:  p.RemotePostID,
			PublishedAt:   p.PublishedAt,
			CreatedAt:     p.CreatedAt,
		})
	}
	return views, nil
}
