package subscription

import "context"

// Store は購読の保存先を抽象化する。
// 排他制御はRegistryが行うため、実装は並行呼び出しを考慮しなくてよい。
type Store interface {
	// Upsert は購読を保存する。同じエンドポイントが存在する場合は元の位置のまま置き換える。
	Upsert(ctx context.Context, sub Subscription) error
	// Delete はエンドポイントに一致する購読を削除し、削除したかどうかを返す。
	Delete(ctx context.Context, endpoint string) (bool, error)
	// Get はエンドポイントに一致する購読を返す。
	Get(ctx context.Context, endpoint string) (Subscription, bool, error)
	// List は全購読を挿入順で返す。
	List(ctx context.Context) ([]Subscription, error)
	// Count は購読数を返す。
	Count(ctx context.Context) (int, error)
}

// MemoryStore はプロセス内メモリに購読を保持するStore。
// プロセスの再起動で内容は失われる。
type MemoryStore struct {
	// subs は挿入順に並んだ購読。
	subs []Subscription
	// index はエンドポイントからsubsの位置への索引。
	index map[string]int
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Upsert は購読を末尾に追加するか、既存の位置で置き換える。
func (m *MemoryStore) Upsert(_ context.Context, sub Subscription) error {
	if i, ok := m.index[sub.Endpoint]; ok {
		m.subs[i] = sub
		return nil
	}
	m.index[sub.Endpoint] = len(m.subs)
	m.subs = append(m.subs, sub)
	return nil
}

// Delete は購読を削除し、後続要素の索引を詰め直す。
func (m *MemoryStore) Delete(_ context.Context, endpoint string) (bool, error) {
	i, ok := m.index[endpoint]
	if !ok {
		return false, nil
	}
	m.subs = append(m.subs[:i], m.subs[i+1:]...)
	delete(m.index, endpoint)
	for j := i; j < len(m.subs); j++ {
		m.index[m.subs[j].Endpoint] = j
	}
	return true, nil
}

// Get はエンドポイントに一致する購読を返す。
func (m *MemoryStore) Get(_ context.Context, endpoint string) (Subscription, bool, error) {
	i, ok := m.index[endpoint]
	if !ok {
		return Subscription{}, false, nil
	}
	return m.subs[i], true, nil
}

// List は購読のコピーを返す。
func (m *MemoryStore) List(_ context.Context) ([]Subscription, error) {
	out := make([]Subscription, len(m.subs))
	copy(out, m.subs)
	return out, nil
}

// Count は購読数を返す。
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	return len(m.subs), nil
}
