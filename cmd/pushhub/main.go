// プッシュ通知サービスのエントリポイント。
// ブラウザの購読を受け付け、VAPIDで署名したWeb Pushを全購読へ一斉配信する。
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/nao1215/pushhub/internal/config"
	"github.com/nao1215/pushhub/internal/delivery"
	"github.com/nao1215/pushhub/internal/dispatch"
	"github.com/nao1215/pushhub/internal/notification"
	"github.com/nao1215/pushhub/internal/subscription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store subscription.Store = subscription.NewMemoryStore()
	if cfg.StoreDSN != "" {
		sqliteStore, err := subscription.OpenSQLiteStore(ctx, cfg.StoreDSN)
		if err != nil {
			log.Fatalf("購読ストアの初期化に失敗: %v", err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
		log.Printf("購読をSQLiteに保存します: %s", cfg.StoreDSN)
	}
	registry := subscription.NewRegistry(store)

	sender, err := delivery.NewWebPushSender(delivery.Options{
		Keys:    cfg.VAPIDKeys(),
		Subject: cfg.VAPIDSubject,
		TTL:     cfg.PushTTL,
		Urgency: cfg.PushUrgency,
		Timeout: cfg.DeliveryTimeout,
	})
	if err != nil {
		log.Fatalf("配信機構の初期化に失敗: %v", err)
	}

	dispatcher := dispatch.New(registry, sender, dispatch.Options{
		Concurrency: cfg.DispatchConcurrency,
		Timeout:     cfg.DeliveryTimeout,
	})

	server := notification.NewServer(notification.Config{
		Port:           cfg.Port,
		VAPIDPublicKey: cfg.VAPIDPublicKey,
		AllowedOrigins: cfg.AllowedOrigins,
	}, registry, dispatcher)

	log.Printf("VAPID公開鍵: %s (長さ: %d)", cfg.VAPIDPublicKey, len(cfg.VAPIDPublicKey))
	log.Printf("プッシュ通知サービスを起動します: :%s", cfg.Port)
	if err := server.Serve(ctx); err != nil {
		log.Fatalf("プッシュ通知サービスの起動に失敗: %v", err)
	}
	log.Println("プッシュ通知サービスを停止しました")
}
