// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TokenCipher はLinkedInアクセストークンをデータベース保存前に暗号化し、
// 利用時に復号する。鍵はSECRET_KEYからPBKDF2で導出するため、
// 鍵素材をそのまま保存する必要がない。
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// ErrInvalidCiphertext は復号に失敗した場合に返される。
// 鍵の変更・データ破損・改ざんのいずれでも同じエラーになる。
var ErrInvalidCiphertext = errors.New("security: invalid ciphertext")

// 鍵導出パラメータ。変更すると既存の暗号化済みトークンが復号できなくなる。
const (
	kdfIterations = 480000
	kdfKeyLen     = 32
)

// kdfSalt は鍵導出用の固定ソルト。SECRET_KEYが十分な強度を持つ前提。
var kdfSalt = []byte("contenthub-token-cipher")

// TokenCipher はAES-256-GCMによるトークンの暗号化・復号を提供する。
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher はsecretKeyから鍵を導出してTokenCipherを生成する。
func NewTokenCipher(secretKey string) (*TokenCipher, error) {
	key := pbkdf2.Key([]byte(secretKey), kdfSalt, kdfIterations, kdfKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &TokenCipher{aead: aead}, nil
}

// Encrypt は平文トークンを暗号化してbase64文字列で返す。
// 出力は nonce || ciphertext をURL-safe base64でエンコードしたもの。
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt は暗号化済みトークンを復号して平文を返す。
// 復号できない場合はErrInvalidCiphertextを返す。
// 呼び出し側はこれを「資格情報が使えない」として恒久エラー扱いする。
func (c *TokenCipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	return string(plaintext), nil
}
