package subscription

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/nao1215/pushhub/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore はSQLiteに購読を保存するStore。
// 挿入順はseq列で保持し、置き換え時もseqは変わらない。
type SQLiteStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// OpenSQLiteStore はdsnで指定されたSQLiteデータベースを開き、スキーマを適用する。
func OpenSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	store, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore は既存の接続からSQLiteStoreを生成し、スキーマを適用する。
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if err := migration.Run(ctx, db, migrations, "migrations"); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert は購読を保存する。既存のエンドポイントは鍵のみ更新する。
func (s *SQLiteStore) Upsert(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (endpoint, p256dh, auth) VALUES (?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			updated_at = datetime('now')
	`, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth)
	if err != nil {
		return fmt.Errorf("購読の保存に失敗: %w", err)
	}
	return nil
}

// Delete はエンドポイントに一致する購読を削除する。
func (s *SQLiteStore) Delete(ctx context.Context, endpoint string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE endpoint = ?", endpoint)
	if err != nil {
		return false, fmt.Errorf("購読の削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return n > 0, nil
}

// Get はエンドポイントに一致する購読を返す。
func (s *SQLiteStore) Get(ctx context.Context, endpoint string) (Subscription, bool, error) {
	var sub Subscription
	err := s.db.QueryRowContext(ctx,
		"SELECT endpoint, p256dh, auth FROM subscriptions WHERE endpoint = ?", endpoint,
	).Scan(&sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, false, nil
	}
	if err != nil {
		return Subscription{}, false, fmt.Errorf("購読の取得に失敗: %w", err)
	}
	return sub, true, nil
}

// List は全購読を挿入順で返す。
func (s *SQLiteStore) List(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT endpoint, p256dh, auth FROM subscriptions ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	subs := make([]Subscription, 0)
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth); err != nil {
			return nil, fmt.Errorf("購読の読み込みに失敗: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Count は購読数を返す。
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions").Scan(&n); err != nil {
		return 0, fmt.Errorf("購読数の取得に失敗: %w", err)
	}
	return n, nil
}
