package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/pushhub/internal/subscription"
	"golang.org/x/sync/errgroup"
)

// 既定の配信設定。
const (
	// DefaultConcurrency は同時に実行する配信数の既定値。
	DefaultConcurrency = 16
	// DefaultTimeout は1件の配信にかける時間の既定値。
	DefaultTimeout = 10 * time.Second
)

// Sender は1件の購読にシリアライズ済みペイロードを届ける外部配信機構。
// 失敗時はDeliveryErrorで分類を返す。分類のないエラーは一時的な失敗として扱われる。
type Sender interface {
	Send(ctx context.Context, sub subscription.Subscription, payload []byte) error
}

// Status は配信結果の状態。
type Status string

const (
	// StatusSuccess は配信に成功したことを表す。
	StatusSuccess Status = "success"
	// StatusFailure は配信に失敗したことを表す。
	StatusFailure Status = "failure"
)

// Outcome は1件の購読に対する配信結果。
type Outcome struct {
	// Endpoint は配信先のエンドポイント。
	Endpoint string `json:"endpoint"`
	// Status は配信結果の状態。
	Status Status `json:"status"`
	// Class は失敗時の分類。
	Class Class `json:"class,omitempty"`
	// StatusCode はプッシュサービスが返したHTTPステータス。
	StatusCode int `json:"statusCode,omitempty"`
	// Error は失敗時のエラーメッセージ。
	Error string `json:"error,omitempty"`
	// Evicted は失敗により購読がレジストリから削除されたかどうか。
	Evicted bool `json:"evicted,omitempty"`
}

// Result は1回の一斉配信の結果。
type Result struct {
	// ID は一斉配信の識別子（UUID）。
	ID string `json:"id"`
	// SuccessCount は成功した配信数。
	SuccessCount int `json:"successCount"`
	// FailureCount は失敗した配信数。
	FailureCount int `json:"failureCount"`
	// Outcomes はレジストリの順序に並んだ購読ごとの結果。
	Outcomes []Outcome `json:"outcomes"`
}

// Options はDispatcherの設定。
type Options struct {
	// Concurrency は同時に実行する配信数の上限。0以下の場合は既定値を使う。
	Concurrency int
	// Timeout は1件の配信にかける時間の上限。0以下の場合は既定値を使う。
	Timeout time.Duration
}

// Dispatcher はレジストリの全購読へ通知を一斉配信する。
type Dispatcher struct {
	// registry は配信対象の購読を保持する。
	registry *subscription.Registry
	// sender は外部の配信機構。
	sender Sender
	// concurrency は同時配信数の上限。
	concurrency int
	// timeout は1件の配信のタイムアウト。
	timeout time.Duration
}

// New は新しいDispatcherを生成する。
func New(registry *subscription.Registry, sender Sender, opts Options) *Dispatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Dispatcher{
		registry:    registry,
		sender:      sender,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
	}
}

// Dispatch はペイロードをレジストリの全購読へ配信する。
// 個々の配信失敗はエラーにせずOutcomeとして返す。購読が消滅したと報告された
// 場合はレジストリから削除する。購読が0件の場合はErrNoSubscribersを返し、配信は行わない。
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) (*Result, error) {
	subs, err := d.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗: %w", err)
	}
	if len(subs) == 0 {
		return nil, ErrNoSubscribers
	}

	body, err := payload.Marshal()
	if err != nil {
		return nil, err
	}

	result := &Result{
		ID:       uuid.New().String(),
		Outcomes: make([]Outcome, len(subs)),
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, sub := range subs {
		g.Go(func() error {
			result.Outcomes[i] = d.deliver(ctx, sub, body)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range result.Outcomes {
		if o.Status == StatusSuccess {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}

	log.Printf("[Dispatch] 一斉配信が完了しました: id=%s, success=%d, failure=%d",
		result.ID, result.SuccessCount, result.FailureCount)
	return result, nil
}

// deliver は1件の購読へ配信し、結果をOutcomeにまとめる。
func (d *Dispatcher) deliver(ctx context.Context, sub subscription.Subscription, body []byte) Outcome {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.sender.Send(sendCtx, sub, body)
	if err == nil {
		log.Printf("[Dispatch] 通知を送信しました: %s", sub.Endpoint)
		return Outcome{Endpoint: sub.Endpoint, Status: StatusSuccess}
	}

	log.Printf("[Dispatch] 通知の送信に失敗: %s: %v", sub.Endpoint, err)
	outcome := Outcome{
		Endpoint: sub.Endpoint,
		Status:   StatusFailure,
		Class:    Classify(err),
		Error:    err.Error(),
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		outcome.StatusCode = de.StatusCode
	}

	if outcome.Class == ClassGone {
		removed, err := d.registry.Remove(ctx, sub.Endpoint)
		if err != nil {
			log.Printf("[Dispatch] 無効な購読の削除に失敗: %s: %v", sub.Endpoint, err)
		} else {
			outcome.Evicted = removed
			log.Printf("[Dispatch] 無効な購読を削除しました: %s", sub.Endpoint)
		}
	}
	return outcome
}
