// Package delivery はWeb Pushプロトコルによる実際の配信を提供する。
//
// VAPID署名とペイロード暗号化はwebpush-goに委譲し、このパッケージは
// プッシュサービスの応答を配信失敗の分類（dispatch.Class）に変換する境界となる。
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/nao1215/pushhub/internal/dispatch"
	"github.com/nao1215/pushhub/internal/subscription"
	"github.com/nao1215/pushhub/internal/vapid"
)

// 配信設定の既定値。
const (
	// DefaultTTL はプッシュサービスがメッセージを保持する秒数の既定値（4週間）。
	DefaultTTL = 2419200
	// defaultHTTPTimeout はHTTPクライアントのタイムアウトの既定値。
	defaultHTTPTimeout = 30 * time.Second
	// maxErrorBody はエラー応答から読み取るボディの上限バイト数。
	maxErrorBody = 1024
)

// ErrInvalidSubject はVAPIDの連絡先がmailto:またはhttps:のURLでないことを表す。
var ErrInvalidSubject = errors.New("VAPIDの連絡先が不正です")

// Options はWebPushSenderの設定。
type Options struct {
	// Keys はVAPID鍵ペア。
	Keys vapid.Keys
	// Subject はVAPIDの連絡先（mailto:またはhttps:）。
	Subject string
	// TTL はプッシュサービスがメッセージを保持する秒数。0以下の場合は既定値を使う。
	TTL int
	// Urgency はメッセージの緊急度（very-low, low, normal, high）。
	Urgency string
	// Timeout はHTTPクライアントのタイムアウト。
	Timeout time.Duration
	// HTTPClient はプッシュサービスへの通信に使うクライアント。nilの場合は生成する。
	HTTPClient webpush.HTTPClient
}

// WebPushSender はwebpush-goを使ってプッシュサービスへ配信するdispatch.Sender。
type WebPushSender struct {
	// options は配信ごとにコピーして使うwebpush-goの設定。
	options webpush.Options
}

// NewWebPushSender は新しいWebPushSenderを生成する。
// VAPID鍵が不正な場合はエラーを返し、配信時まで問題を持ち越さない。
func NewWebPushSender(opts Options) (*WebPushSender, error) {
	if err := vapid.Check(opts.Keys); err != nil {
		return nil, err
	}
	subscriber, err := normalizeSubject(opts.Subject)
	if err != nil {
		return nil, err
	}
	urgency, err := parseUrgency(opts.Urgency)
	if err != nil {
		return nil, err
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &WebPushSender{
		options: webpush.Options{
			HTTPClient:      client,
			Subscriber:      subscriber,
			TTL:             opts.TTL,
			Urgency:         urgency,
			VAPIDPublicKey:  opts.Keys.PublicKey,
			VAPIDPrivateKey: opts.Keys.PrivateKey,
		},
	}, nil
}

// Send はペイロードを暗号化して購読のエンドポイントへ配信する。
// 失敗時は分類済みの*dispatch.DeliveryErrorを返す。
func (s *WebPushSender) Send(ctx context.Context, sub subscription.Subscription, payload []byte) error {
	opts := s.options
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Keys.Auth,
			P256dh: sub.Keys.P256dh,
		},
	}, &opts)
	if err != nil {
		return &dispatch.DeliveryError{Class: classifyError(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &dispatch.DeliveryError{
		Class:      ClassifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("プッシュサービスがエラーを返しました: %s", strings.TrimSpace(string(body))),
	}
}

// ClassifyStatus はプッシュサービスのHTTPステータスを配信失敗の分類に変換する。
// 404と410は購読の消滅、400と413はペイロードの拒否、それ以外は一時的な失敗とする。
func ClassifyStatus(code int) dispatch.Class {
	switch code {
	case http.StatusNotFound, http.StatusGone:
		return dispatch.ClassGone
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return dispatch.ClassInvalidPayload
	default:
		return dispatch.ClassTransient
	}
}

// classifyError は応答を得る前に発生したエラーを分類する。
// 通信エラーは一時的な失敗、それ以外は暗号化やリクエスト生成の失敗としてペイロードの拒否とする。
func classifyError(err error) dispatch.Class {
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dispatch.ClassTransient
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return dispatch.ClassTransient
	default:
		return dispatch.ClassInvalidPayload
	}
}

// normalizeSubject はVAPIDの連絡先をwebpush-goが期待する形に変換する。
// webpush-goはhttps:以外の値にmailto:を付与するため、mailto:は取り除いて渡す。
func normalizeSubject(subject string) (string, error) {
	switch {
	case strings.HasPrefix(subject, "mailto:"):
		addr := strings.TrimPrefix(subject, "mailto:")
		if !strings.Contains(addr, "@") {
			return "", fmt.Errorf("%w: %q", ErrInvalidSubject, subject)
		}
		return addr, nil
	case strings.HasPrefix(subject, "https://"):
		return subject, nil
	default:
		return "", fmt.Errorf("%w: mailto:またはhttps:で始まる必要があります: %q", ErrInvalidSubject, subject)
	}
}

// parseUrgency は緊急度の文字列を検証する。空文字列は指定なしとして扱う。
func parseUrgency(s string) (webpush.Urgency, error) {
	switch u := webpush.Urgency(s); u {
	case "", webpush.UrgencyVeryLow, webpush.UrgencyLow, webpush.UrgencyNormal, webpush.UrgencyHigh:
		return u, nil
	default:
		return "", fmt.Errorf("緊急度が不正です: %q", s)
	}
}
