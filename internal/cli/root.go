// Package cli はpushhubの運用CLI（pushctl）を提供する。
//
// VAPID鍵の生成と検証はローカルで行い、通知の送信と購読一覧の取得は
// 起動中のpushhubサーバーのHTTP APIを呼び出す。
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version はpushctlのバージョン。
var Version = "0.1.0"

// defaultServerURL は接続先サーバーの既定値。
const defaultServerURL = "http://localhost:3001"

// NewRootCmd はpushctlのルートコマンドを生成する。
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pushctl",
		Short:         "pushhubの運用CLI",
		Long:          `pushctlはVAPID鍵の管理と、pushhubサーバーへの通知送信・購読確認を行うCLIです。`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("server", serverURLFromEnv(), "pushhubサーバーのURL（環境変数PUSHHUB_URL）")

	rootCmd.AddCommand(newKeysCommand())
	rootCmd.AddCommand(newSendCommand())
	rootCmd.AddCommand(newSubscriptionsCommand())
	return rootCmd
}

// Execute はルートコマンドを実行する。
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		return err
	}
	return nil
}

// serverURLFromEnv は環境変数から接続先サーバーのURLを返す。
func serverURLFromEnv() string {
	if u := os.Getenv("PUSHHUB_URL"); u != "" {
		return u
	}
	return defaultServerURL
}
