package dispatch

import (
	"errors"
	"fmt"

	"github.com/nao1215/pushhub/internal/subscription"
)

var (
	// ErrInvalidInput は不正な購読やペイロードが渡されたことを表す。
	ErrInvalidInput = subscription.ErrInvalidInput
	// ErrNoSubscribers は配信対象の購読が1件もないことを表す。
	ErrNoSubscribers = errors.New("有効な購読がありません")
)

// Class は配信失敗の分類。
type Class string

const (
	// ClassGone はプッシュサービスが購読の消滅を報告したことを表す。購読は削除される。
	ClassGone Class = "gone"
	// ClassInvalidPayload はプッシュサービスがペイロードを拒否したことを表す。
	ClassInvalidPayload Class = "invalid_payload"
	// ClassTransient はネットワークやサーバー側の一時的な失敗を表す。
	ClassTransient Class = "transient"
)

// DeliveryError は1件の配信失敗を分類付きで表す。
type DeliveryError struct {
	// Class は失敗の分類。
	Class Class
	// StatusCode はプッシュサービスが返したHTTPステータス。応答がない場合は0。
	StatusCode int
	// Err は元のエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("配信に失敗 (%s, status=%d): %v", e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("配信に失敗 (%s): %v", e.Class, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Classify はエラーの分類を返す。
// DeliveryErrorでないエラーは一時的な失敗として扱う。
func Classify(err error) Class {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Class
	}
	return ClassTransient
}
