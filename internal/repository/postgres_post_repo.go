package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/crosspost/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
// queuedステータスの行の集合が配信キューを兼ねる。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const postColumns = `id, user_id, account_id, platform, content, status,
	remote_post_id, published_at, created_at, updated_at`

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`,
		id,
	)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return post, nil
}

// CreateBatch は複数の投稿を単一トランザクションで作成する。
// 1件でも失敗した場合は全件ロールバックされる。
func (r *PostgresPostRepo) CreateBatch(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, post := range posts {
		content, err := json.Marshal(post.Content)
		if err != nil {
			return fmt.Errorf("failed to marshal post content: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO posts (id, user_id, account_id, platform, content, status,
				remote_post_id, published_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			post.ID, post.UserID, post.AccountID, string(post.Platform), content,
			string(post.Status), post.RemotePostID, post.PublishedAt,
			post.CreatedAt, post.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateStatus は投稿の状態を更新する。
func (r *PostgresPostRepo) UpdateStatus(ctx context.Context, id string, status model.PostStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update post status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post not found: %s", id)
	}
	return nil
}

// MarkPublished は投稿をpublishedに遷移させ、プラットフォーム側の投稿IDと
// 配信日時を記録する。
func (r *PostgresPostRepo) MarkPublished(ctx context.Context, id, remotePostID string, publishedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts
		 SET status = $1, remote_post_id = $2, published_at = $3, updated_at = now()
		 WHERE id = $4`,
		string(model.PostStatusPublished), remotePostID, publishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark post published: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post not found: %s", id)
	}
	return nil
}

// ClaimQueued はqueuedの投稿を最大limit件、FOR UPDATE SKIP LOCKEDで
// 排他的に取得し、同一トランザクション内でrunningへ遷移させて返す。
func (r *PostgresPostRepo) ClaimQueued(ctx context.Context, limit int) ([]*model.Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE status = $1
		 ORDER BY created_at
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		string(model.PostStatusQueued), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select queued posts: %w", err)
	}

	var posts []*model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	rows.Close()

	if len(posts) == 0 {
		return nil, tx.Commit()
	}

	ids := make([]string, len(posts))
	for i, post := range posts {
		ids[i] = post.ID
		post.Status = model.PostStatusRunning
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE posts SET status = $1, updated_at = now() WHERE id = ANY($2)`,
		string(model.PostStatusRunning), pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark posts running: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return posts, nil
}

// RequeueStuckRunning はolderThanより前から更新のないrunningの投稿を
// queuedへ戻し、戻した件数を返す。
func (r *PostgresPostRepo) RequeueStuckRunning(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = $1, updated_at = now()
		 WHERE status = $2 AND updated_at < $3`,
		string(model.PostStatusQueued), string(model.PostStatusRunning), olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stuck posts: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

// ListByUser はユーザーの投稿をフィルタ条件で絞り込んで作成日時降順で返す。
func (r *PostgresPostRepo) ListByUser(ctx context.Context, userID string, filter PostFilter) ([]*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		 WHERE user_id = $1 AND created_at BETWEEN $2 AND $3`
	args := []any{userID, filter.Start, filter.End}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if len(filter.Platforms) > 0 {
		platforms := make([]string, len(filter.Platforms))
		for i, p := range filter.Platforms {
			platforms[i] = string(p)
		}
		args = append(args, pq.Array(platforms))
		query += fmt.Sprintf(" AND platform = ANY($%d)", len(args))
	}
	if len(filter.AccountIDs) > 0 {
		args = append(args, pq.Array(filter.AccountIDs))
		query += fmt.Sprintf(" AND account_id = ANY($%d)", len(args))
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

func scanPost(row rowScanner) (*model.Post, error) {
	post := &model.Post{}
	var platform, status string
	var content []byte
	var publishedAt sql.NullTime
	err := row.Scan(
		&post.ID, &post.UserID, &post.AccountID, &platform, &content, &status,
		&post.RemotePostID, &publishedAt, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	post.Platform = model.Platform(platform)
	post.Status = model.PostStatus(status)
	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &post.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal post content: %w", err)
		}
	}
	return post, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
