package dispatch

import (
	"encoding/json"
	"fmt"
)

// ペイロード未指定時の既定値。
const (
	// DefaultTitle は通知タイトルの既定値。
	DefaultTitle = "通知"
	// DefaultMessage は通知本文の既定値。
	DefaultMessage = "新しいメッセージがあります"
	// DefaultIcon は通知アイコンの既定値。
	DefaultIcon = "/pwa-192x192.png"
	// DefaultURL は通知クリック時の遷移先の既定値。
	DefaultURL = "/"
)

// Payload は購読者に届ける通知の内容。
type Payload struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知の本文。
	Message string `json:"message"`
	// Body はMessageの別名。入力時のみ受け付ける。
	Body string `json:"body,omitempty"`
	// Icon は通知アイコンのパス。
	Icon string `json:"icon"`
	// URL は通知クリック時の遷移先。
	URL string `json:"url,omitempty"`
}

// Normalize は未指定のフィールドに既定値を設定したコピーを返す。
func (p Payload) Normalize() Payload {
	if p.Message == "" {
		p.Message = p.Body
	}
	p.Body = ""
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Message == "" {
		p.Message = DefaultMessage
	}
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	if p.URL == "" {
		p.URL = DefaultURL
	}
	return p
}

// ValidateStrict はタイトルと本文が明示的に指定されているかを検証する。
// カスタム通知の送信で使用する。
func (p Payload) ValidateStrict() error {
	if p.Title == "" || (p.Message == "" && p.Body == "") {
		return fmt.Errorf("%w: titleとmessageは必須です", ErrInvalidInput)
	}
	return nil
}

// Marshal は既定値を適用したペイロードをコンパクトなJSONにシリアライズする。
func (p Payload) Marshal() ([]byte, error) {
	b, err := json.Marshal(p.Normalize())
	if err != nil {
		return nil, fmt.Errorf("ペイロードのシリアライズに失敗: %w", err)
	}
	return b, nil
}
