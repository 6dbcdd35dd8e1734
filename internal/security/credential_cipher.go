// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// CredentialCipher は接続アカウントの資格情報を保存時に暗号化する。
// AES-256-GCMを使用し、暗号文はnonceを先頭に連結したバイト列を
// base64エンコードして扱う。復号はパブリッシャーの認証ステップ内でのみ
// 行うこと。
type CredentialCipher struct {
	aead cipher.AEAD
}

// NewCredentialCipher はCredentialCipherを生成する。
// 鍵は設定のシークレットをSHA-256で256bitに正規化して導出する。
func NewCredentialCipher(secret string) (*CredentialCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("credential secret must not be empty")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &CredentialCipher{aead: aead}, nil
}

// Encrypt は平文を暗号化してbase64文字列を返す。
func (c *CredentialCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt はEncryptで暗号化された文字列を復号する。
// 鍵が異なる場合や暗号文が改竄されている場合はエラーを返す。
func (c *CredentialCipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("ciphertext is too short")
	}

	plaintext, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plaintext), nil
}
