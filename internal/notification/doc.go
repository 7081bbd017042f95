// Package notification はプッシュ通知サービスのHTTP APIを提供する。
//
// ブラウザからの購読登録・解除を受け付けて購読レジストリに反映し、
// 通知送信リクエストを受けてDispatcherで全購読へ一斉配信する。
// 配信結果は購読ごとの詳細とともに呼び出し元へ返す。
package notification
