// Package dispatch は通知の一斉配信と購読のライフサイクル管理を提供する。
//
// Dispatcherはレジストリの全購読に対して独立した配信タスクを並行に実行し、
// 購読ごとの結果を順序付きで集約する。プッシュサービスが購読の消滅（Gone）を
// 報告した場合のみ、その購読をレジストリから削除する。
// 暗号化と署名を伴う実際の配信はSenderに委譲する。
package dispatch
