package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/crosspost/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

const accountColumns = `id, user_id, sociable_id, sociable_type, platform, name, handle,
	email, profile_image_url, access_token, refresh_token, token_expires_at, created_at, updated_at`

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return account, nil
}

// FindDuplicate は(所有者, 外部プロファイル参照, プラットフォーム, ハンドル)が
// 一致する既存アカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindDuplicate(ctx context.Context, userID, sociableID, sociableType string, platform model.Platform, handle string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE user_id = $1 AND sociable_id = $2 AND sociable_type = $3
		   AND platform = $4 AND handle = $5`,
		userID, sociableID, sociableType, string(platform), handle,
	)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate account: %w", err)
	}
	return account, nil
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, sociable_id, sociable_type, platform, name, handle,
			email, profile_image_url, access_token, refresh_token, token_expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		account.ID, account.UserID, account.SociableID, account.SociableType,
		string(account.Platform), account.Name, account.Handle,
		account.Email, account.ProfileImageURL, account.AccessToken, account.RefreshToken,
		account.TokenExpiresAt, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの接続済みアカウント一覧を作成日時順で返す。
func (r *PostgresAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// DeleteByID は指定IDのアカウントを削除する。関連する投稿はCASCADE削除される。
func (r *PostgresAccountRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	account := &model.Account{}
	var platform string
	var tokenExpiresAt sql.NullTime
	err := row.Scan(
		&account.ID, &account.UserID, &account.SociableID, &account.SociableType,
		&platform, &account.Name, &account.Handle,
		&account.Email, &account.ProfileImageURL, &account.AccessToken, &account.RefreshToken,
		&tokenExpiresAt, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Platform = model.Platform(platform)
	if tokenExpiresAt.Valid {
		account.TokenExpiresAt = &tokenExpiresAt.Time
	}
	return account, nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
