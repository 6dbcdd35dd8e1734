// Package account はソーシャルメディアアカウントの接続・管理を提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/crosspost/internal/bluesky"
	"github.com/hitoshi/crosspost/internal/model"
	"github.com/hitoshi/crosspost/internal/repository"
)

// blueskyHandleRe はBlueskyハンドル（xxx.bsky.social）または独自ドメインの形状。
var blueskyHandleRe = regexp.MustCompile(`^([a-zA-Z0-9.-]+\.bsky\.social|[A-Za-z0-9-]{1,63}\.[A-Za-z]{2,6})$`)

// minAppPasswordLength はアプリパスワードの最小長。
const minAppPasswordLength = 8

// BlueskyVerifier はアカウント接続時の資格情報検証とプロフィール取得の
// インターフェース。bluesky.Clientを抽象化する。
type BlueskyVerifier interface {
	CreateSession(ctx context.Context, identifier, password string) (*bluesky.Session, error)
	GetProfile(ctx context.Context, actor string) (*bluesky.Profile, error)
}

// CredentialEncrypter は資格情報の暗号化インターフェース。
type CredentialEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Service はアカウント接続・切断・一覧のビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	bsky     BlueskyVerifier
	cipher   CredentialEncrypter
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(accounts repository.AccountRepository, bsky BlueskyVerifier, cipher CredentialEncrypter, logger *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		bsky:     bsky,
		cipher:   cipher,
		logger:   logger,
	}
}

// List はユーザーの接続済みアカウント一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Account, error) {
	accounts, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アカウント一覧の取得に失敗しました: %w", err)
	}
	return accounts, nil
}

// ConnectBluesky はBlueskyアカウントを接続する。
//
// フロー: 入力検証 → 重複の事前チェック → createSessionによる資格情報の
// 検証 → プロフィール取得 → 資格情報の暗号化 → アカウント作成。
// 重複チェックは作成を試みる前の明示的な事前条件として行い、
// 重複時はDUPLICATE_ACCOUNTを返してレコードを作成しない。
func (s *Service) ConnectBluesky(ctx context.Context, userID, handle, appPassword string) (*model.Account, error) {
	if !blueskyHandleRe.MatchString(handle) {
		return nil, model.NewValidationError("ハンドルはexample.bsky.socialまたは有効なドメイン形式で指定してください")
	}
	if len(appPassword) < minAppPasswordLength {
		return nil, model.NewValidationError(fmt.Sprintf("アプリパスワードは%d文字以上で指定してください", minAppPasswordLength))
	}

	existing, err := s.accounts.FindDuplicate(ctx, userID, "", "", model.PlatformBluesky, handle)
	if err != nil {
		return nil, fmt.Errorf("重複アカウントの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateAccountError(model.PlatformBluesky, handle)
	}

	// 資格情報の検証。失敗した場合はここで中断し、何も作成しない。
	if _, err := s.bsky.CreateSession(ctx, handle, appPassword); err != nil {
		return nil, err
	}

	profile, err := s.bsky.GetProfile(ctx, handle)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(appPassword)
	if err != nil {
		return nil, fmt.Errorf("資格情報の暗号化に失敗しました: %w", err)
	}

	now := time.Now()
	account := &model.Account{
		ID:              uuid.New().String(),
		UserID:          userID,
		Platform:        model.PlatformBluesky,
		Name:            profile.DisplayName,
		Handle:          handle,
		ProfileImageURL: profile.Avatar,
		AccessToken:     encrypted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("アカウントの作成に失敗しました: %w", err)
	}

	s.logger.Info("Blueskyアカウントを接続しました",
		slog.String("user_id", userID),
		slog.String("account_id", account.ID),
		slog.String("handle", handle),
	)
	return account, nil
}

// Disconnect はアカウントの接続を解除する。
// 所有者以外からの削除要求はACCOUNT_NOT_FOUNDとして扱う。
// 関連する投稿はCASCADE削除される。
func (s *Service) Disconnect(ctx context.Context, userID, accountID string) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("アカウントの検索に失敗しました: %w", err)
	}
	if account == nil || account.UserID != userID {
		return model.NewAccountNotFoundError(accountID)
	}

	if err := s.accounts.DeleteByID(ctx, accountID); err != nil {
		return fmt.Errorf("アカウントの削除に失敗しました: %w", err)
	}

	s.logger.Info("アカウントの接続を解除しました",
		slog.String("user_id", userID),
		slog.String("account_id", accountID),
		slog.String("platform", string(account.Platform)),
	)
	return nil
}
