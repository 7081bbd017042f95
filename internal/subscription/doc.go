// Package subscription はブラウザのプッシュ購読を管理するレジストリを提供する。
//
// 購読はエンドポイントURLを自然キーとして一意に保持される。同じエンドポイントで
// 再度購読された場合は重複させずに置き換える。保存先はStoreインターフェースで
// 差し替え可能で、既定はインメモリ、STORE_DSN指定時はSQLiteを使用する。
package subscription
