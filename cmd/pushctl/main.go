// pushhubの運用CLIのエントリポイント。
// VAPID鍵の生成・検証と、起動中のサーバーへの通知送信を行う。
package main

import (
	"os"

	"github.com/nao1215/pushhub/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
