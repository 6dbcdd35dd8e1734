package model

import "time"

// Platform は接続先プラットフォームの識別子を表す。
type Platform string

const (
	// PlatformBluesky はBlueskyプラットフォーム。
	PlatformBluesky Platform = "bluesky"
)

// Label はUI表示用のプラットフォーム名を返す。
func (p Platform) Label() string {
	switch p {
	case PlatformBluesky:
		return "Bluesky"
	default:
		return string(p)
	}
}

// Valid は既知のプラットフォームかどうかを返す。
func (p Platform) Valid() bool {
	return p == PlatformBluesky
}

// Account は接続済みのソーシャルメディアアカウントを表す。
// AccessTokenは暗号化された状態で保持し、復号はパブリッシャーの
// 認証ステップ内でのみ行う。
// (UserID, SociableID, SociableType, Platform, Handle) の組は一意。
type Account struct {
	ID              string
	UserID          string
	SociableID      string // 外部プロファイル参照（任意）
	SociableType    string
	Platform        Platform
	Name            string
	Handle          string
	Email           string
	ProfileImageURL string
	AccessToken     string // 暗号化済み
	RefreshToken    string
	TokenExpiresAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
