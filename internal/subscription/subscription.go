package subscription

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrInvalidInput は呼び出し元が不正な購読やペイロードを渡したことを表す。
// レジストリやディスパッチャに到達する前の境界で返される。
var ErrInvalidInput = errors.New("入力が不正です")

// Keys はペイロード暗号化に使用する購読者の鍵ペア。
type Keys struct {
	// P256dh は購読者のP-256公開鍵（base64url）。
	P256dh string `json:"p256dh"`
	// Auth は購読者の認証シークレット（base64url）。
	Auth string `json:"auth"`
}

// Subscription は1つのブラウザのプッシュ配信先を表す。
type Subscription struct {
	// Endpoint はプッシュサービスのURL。購読の自然キー。
	Endpoint string `json:"endpoint"`
	// Keys はペイロード暗号化用の鍵。
	Keys Keys `json:"keys"`
}

// Validate は購読がレジストリに登録可能な形であるかを検証する。
func (s Subscription) Validate() error {
	if err := ValidateEndpoint(s.Endpoint); err != nil {
		return err
	}
	if s.Keys.P256dh == "" {
		return fmt.Errorf("%w: keys.p256dhが空です", ErrInvalidInput)
	}
	if s.Keys.Auth == "" {
		return fmt.Errorf("%w: keys.authが空です", ErrInvalidInput)
	}
	return nil
}

// ValidateEndpoint はエンドポイントが絶対URL（http/https）であるかを検証する。
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpointが空です", ErrInvalidInput)
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("%w: endpointがURLではありません: %q", ErrInvalidInput, endpoint)
	}
	return nil
}
