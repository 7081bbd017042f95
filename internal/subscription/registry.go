package subscription

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Registry は購読の集合を管理する。
// すべての変更を単一のミューテックスで直列化し、
// 1エンドポイントにつき最大1件の購読という不変条件を保つ。
type Registry struct {
	// mu はstoreへのアクセスを直列化する。
	mu sync.RWMutex
	// store は購読の保存先。
	store Store
}

// NewRegistry は指定されたStoreを使うRegistryを生成する。
// storeがnilの場合はMemoryStoreを使用する。
func NewRegistry(store Store) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{store: store}
}

// Add は購読を登録する。同じエンドポイントが既に存在する場合は置き換える。
// 不正な購読はErrInvalidInputで拒否する。
func (r *Registry) Add(ctx context.Context, sub Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed, err := r.store.Get(ctx, sub.Endpoint)
	if err != nil {
		return fmt.Errorf("既存購読の確認に失敗: %w", err)
	}
	if err := r.store.Upsert(ctx, sub); err != nil {
		return err
	}

	if existed {
		log.Printf("[Registry] 購読を更新しました: %s", sub.Endpoint)
	} else {
		log.Printf("[Registry] 新しい購読を追加しました: %s", sub.Endpoint)
	}
	return nil
}

// Remove はエンドポイントに一致する購読を削除する。
// 存在しないエンドポイントの削除はエラーにせず、falseを返す。
func (r *Registry) Remove(ctx context.Context, endpoint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, err := r.store.Delete(ctx, endpoint)
	if err != nil {
		return false, err
	}
	if removed {
		log.Printf("[Registry] 購読を削除しました: %s", endpoint)
	}
	return removed, nil
}

// List は現在の購読のスナップショットを挿入順で返す。
// 返されたスライスはその後の変更の影響を受けない。
func (r *Registry) List(ctx context.Context) ([]Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.List(ctx)
}

// Contains はエンドポイントが登録済みかどうかを返す。
func (r *Registry) Contains(ctx context.Context, endpoint string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok, err := r.store.Get(ctx, endpoint)
	return ok, err
}

// Count は現在の購読数を返す。
func (r *Registry) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Count(ctx)
}
