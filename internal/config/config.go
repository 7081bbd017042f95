// Package config はpushhubの設定を環境変数から読み込む。
//
// カレントディレクトリの.envファイルが存在すれば先に読み込み、
// 既に設定済みの環境変数は上書きしない。
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/nao1215/pushhub/internal/vapid"
)

// Config はpushhubサーバーの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"3001"`
	// VAPIDPublicKey はVAPID公開鍵（base64url, 87文字）。
	VAPIDPublicKey string `env:"VAPID_PUBLIC_KEY,required"`
	// VAPIDPrivateKey はVAPID秘密鍵（base64url）。
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY,required"`
	// VAPIDSubject はプッシュサービスに伝える連絡先。
	VAPIDSubject string `env:"VAPID_SUBJECT" envDefault:"mailto:your-email@example.com"`
	// StoreDSN はSQLiteのDSN。空の場合はインメモリで購読を保持する。
	StoreDSN string `env:"STORE_DSN"`
	// DeliveryTimeout は1件の配信にかける時間の上限。
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"10s"`
	// DispatchConcurrency は同時に実行する配信数の上限。
	DispatchConcurrency int `env:"DISPATCH_CONCURRENCY" envDefault:"16"`
	// PushTTL はプッシュサービスがメッセージを保持する秒数。
	PushTTL int `env:"PUSH_TTL" envDefault:"2419200"`
	// PushUrgency はメッセージの緊急度。
	PushUrgency string `env:"PUSH_URGENCY" envDefault:"normal"`
	// AllowedOrigins はCORSで許可するオリジン。"*"は全オリジンを許可する。
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// VAPIDKeys はVAPID鍵ペアを返す。
func (c *Config) VAPIDKeys() vapid.Keys {
	return vapid.Keys{PublicKey: c.VAPIDPublicKey, PrivateKey: c.VAPIDPrivateKey}
}

// Validate は設定値を検証する。VAPID鍵が不正な場合は起動させない。
func (c *Config) Validate() error {
	if err := vapid.Check(c.VAPIDKeys()); err != nil {
		return fmt.Errorf("VAPID鍵の検証に失敗: %w", err)
	}
	if c.DeliveryTimeout <= 0 {
		return errors.New("DELIVERY_TIMEOUTは正の値である必要があります")
	}
	if c.DispatchConcurrency <= 0 {
		return errors.New("DISPATCH_CONCURRENCYは正の値である必要があります")
	}
	if c.PushTTL < 0 {
		return errors.New("PUSH_TTLは0以上である必要があります")
	}
	return nil
}

// Load は.envファイルと環境変数から設定を読み込み、検証する。
func Load() (*Config, error) {
	// .envは存在しなくてもよい
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("環境変数の解析に失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom は指定された環境変数の集合から設定を読み込み、検証する。
// プロセスの環境変数と.envファイルは参照しない。
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("環境変数の解析に失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
