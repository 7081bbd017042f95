// Package vapid はVAPID鍵ペアの生成と検証を提供する。
//
// 公開鍵はP-256の非圧縮点をbase64url（パディングなし）で表したもので、
// 87文字かつ先頭が"B"になる。起動時に鍵を検証し、不正な鍵では動作させない。
package vapid

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// PublicKeyLength はbase64urlエンコードされた公開鍵の文字数。
	PublicKeyLength = 87
	// PublicKeyPrefix は公開鍵の先頭文字。非圧縮点を表す0x04に由来する。
	PublicKeyPrefix = "B"
	// privateKeySize はP-256秘密鍵のバイト数。
	privateKeySize = 32
	// checkAudience は署名検証に使うダミーのプッシュサービスのオリジン。
	checkAudience = "https://push.example.invalid"
)

var (
	// ErrMissingKey はVAPID鍵が設定されていないことを表す。
	ErrMissingKey = errors.New("VAPID鍵が設定されていません")
	// ErrInvalidPublicKey は公開鍵の形式が不正であることを表す。
	ErrInvalidPublicKey = errors.New("VAPID公開鍵の形式が不正です")
	// ErrInvalidPrivateKey は秘密鍵の形式が不正であることを表す。
	ErrInvalidPrivateKey = errors.New("VAPID秘密鍵の形式が不正です")
	// ErrKeyMismatch は秘密鍵と公開鍵が対応していないことを表す。
	ErrKeyMismatch = errors.New("VAPID秘密鍵と公開鍵が対応していません")
)

// Keys はVAPID鍵ペア。
type Keys struct {
	// PublicKey はbase64urlエンコードされた公開鍵。ブラウザに配布する。
	PublicKey string
	// PrivateKey はbase64urlエンコードされた秘密鍵。
	PrivateKey string
}

// Generate は新しいVAPID鍵ペアを生成する。
func Generate() (Keys, error) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return Keys{}, fmt.Errorf("VAPID鍵の生成に失敗: %w", err)
	}
	return Keys{PublicKey: publicKey, PrivateKey: privateKey}, nil
}

// ValidatePublicKey は公開鍵の形式を検証する。
// 87文字で先頭が"B"であり、P-256曲線上の点にデコードできる必要がある。
func ValidatePublicKey(key string) error {
	_, err := decodePublicKey(key)
	return err
}

// ValidatePrivateKey は秘密鍵の形式を検証する。
func ValidatePrivateKey(key string) error {
	_, err := decodePrivateKey(key)
	return err
}

// Check は鍵ペアの形式を検証し、秘密鍵から公開鍵が導出できることを確認する。
// さらにVAPIDと同じES256のJWTを署名・検証し、鍵ペアが実際に使えることを確かめる。
func Check(keys Keys) error {
	pub, err := decodePublicKey(keys.PublicKey)
	if err != nil {
		return err
	}
	priv, err := decodePrivateKey(keys.PrivateKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(priv.PublicKey().Bytes(), pub.Bytes()) {
		return ErrKeyMismatch
	}
	return signAndVerify(priv.Bytes(), pub.Bytes())
}

// decodePublicKey は公開鍵をデコードする。
func decodePublicKey(key string) (*ecdh.PublicKey, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: 公開鍵", ErrMissingKey)
	}
	if len(key) != PublicKeyLength || !strings.HasPrefix(key, PublicKeyPrefix) {
		return nil, fmt.Errorf("%w: 先頭が%qで長さ%d文字である必要があります (長さ=%d)",
			ErrInvalidPublicKey, PublicKeyPrefix, PublicKeyLength, len(key))
	}
	raw, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: base64urlのデコードに失敗: %v", ErrInvalidPublicKey, err)
	}
	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: P-256の点ではありません: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// decodePrivateKey は秘密鍵をデコードする。
func decodePrivateKey(key string) (*ecdh.PrivateKey, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: 秘密鍵", ErrMissingKey)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: base64urlのデコードに失敗: %v", ErrInvalidPrivateKey, err)
	}
	if len(raw) != privateKeySize {
		return nil, fmt.Errorf("%w: %dバイトである必要があります (長さ=%d)", ErrInvalidPrivateKey, privateKeySize, len(raw))
	}
	priv, err := ecdh.P256().NewPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return priv, nil
}

// signAndVerify はVAPIDと同形式のJWTを秘密鍵で署名し、公開鍵で検証する。
func signAndVerify(privRaw, pubRaw []byte) error {
	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(pubRaw[1:33]),
			Y:     new(big.Int).SetBytes(pubRaw[33:]),
		},
		D: new(big.Int).SetBytes(privRaw),
	}

	claims := jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{checkAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		Subject:   "mailto:check@example.invalid",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		return fmt.Errorf("テスト用JWTの署名に失敗: %w", err)
	}

	_, err = jwt.Parse(signed,
		func(_ *jwt.Token) (any, error) { return &key.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithAudience(checkAudience),
	)
	if err != nil {
		return fmt.Errorf("%w: テスト用JWTの検証に失敗: %v", ErrKeyMismatch, err)
	}
	return nil
}
