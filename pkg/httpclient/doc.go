// Package httpclient はpushhubサーバーのHTTP APIを呼び出すクライアントを提供する。
//
// pushctlコマンドが購読一覧の取得や通知の一斉配信を行う際に使用する。
// JSONのシリアライズ、リクエストIDの伝播、エラー応答の扱いを統一する。
package httpclient
