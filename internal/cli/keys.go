package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nao1215/pushhub/internal/vapid"
	"github.com/spf13/cobra"
)

// newKeysCommand はVAPID鍵を扱うkeysコマンドを生成する。
func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "VAPID鍵の生成と検証",
	}
	cmd.AddCommand(newKeysGenerateCommand())
	cmd.AddCommand(newKeysCheckCommand())
	return cmd
}

// newKeysGenerateCommand は新しいVAPID鍵ペアを.env形式で出力するコマンドを生成する。
func newKeysGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "新しいVAPID鍵ペアを生成する",
		Example: `  # 生成した鍵を.envに追記する
  pushctl keys generate >> .env`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := vapid.Generate()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "VAPID_PUBLIC_KEY=%s\n", keys.PublicKey)
			fmt.Fprintf(out, "VAPID_PRIVATE_KEY=%s\n", keys.PrivateKey)

			// 形式の確認結果は.envに混ざらないよう標準エラーに出す
			errOut := cmd.ErrOrStderr()
			fmt.Fprintf(errOut, "公開鍵の長さ: %d (期待値: %d)\n", len(keys.PublicKey), vapid.PublicKeyLength)
			fmt.Fprintf(errOut, "公開鍵が%qで始まる: %t\n", vapid.PublicKeyPrefix, strings.HasPrefix(keys.PublicKey, vapid.PublicKeyPrefix))
			return nil
		},
	}
}

// newKeysCheckCommand はVAPID鍵ペアを検証するコマンドを生成する。
// フラグで指定がなければ.envと環境変数の値を使う。
func newKeysCheckCommand() *cobra.Command {
	var publicKey, privateKey string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "VAPID鍵ペアを検証する",
		Long: `VAPID鍵ペアを検証します。

公開鍵が"B"で始まる87文字であること、両方の鍵がP-256上の鍵として復号できること、
秘密鍵から公開鍵が導出できること、ES256で署名と検証ができることを確認します。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if publicKey == "" || privateKey == "" {
				_ = godotenv.Load()
			}
			if publicKey == "" {
				publicKey = os.Getenv("VAPID_PUBLIC_KEY")
			}
			if privateKey == "" {
				privateKey = os.Getenv("VAPID_PRIVATE_KEY")
			}
			return runKeysCheck(cmd.OutOrStdout(), vapid.Keys{PublicKey: publicKey, PrivateKey: privateKey})
		},
	}

	cmd.Flags().StringVar(&publicKey, "public-key", "", "検証する公開鍵（既定: VAPID_PUBLIC_KEY）")
	cmd.Flags().StringVar(&privateKey, "private-key", "", "検証する秘密鍵（既定: VAPID_PRIVATE_KEY）")
	return cmd
}

// runKeysCheck は鍵ペアを検証して結果を出力する。秘密鍵は先頭のみ表示する。
func runKeysCheck(out io.Writer, keys vapid.Keys) error {
	if keys.PublicKey == "" || keys.PrivateKey == "" {
		return fmt.Errorf("VAPID_PUBLIC_KEYとVAPID_PRIVATE_KEYを指定してください: %w", vapid.ErrMissingKey)
	}

	fmt.Fprintf(out, "公開鍵: %s\n", keys.PublicKey)
	fmt.Fprintf(out, "秘密鍵: %s...\n", maskKey(keys.PrivateKey))
	fmt.Fprintf(out, "公開鍵の長さ: %d\n", len(keys.PublicKey))
	fmt.Fprintf(out, "秘密鍵の長さ: %d\n", len(keys.PrivateKey))

	if err := vapid.Check(keys); err != nil {
		fmt.Fprintf(out, "結果: NG (%v)\n", err)
		if errors.Is(err, vapid.ErrInvalidPublicKey) {
			fmt.Fprintf(out, "公開鍵は%qで始まる%d文字である必要があります\n", vapid.PublicKeyPrefix, vapid.PublicKeyLength)
		}
		return err
	}
	fmt.Fprintln(out, "結果: OK")
	return nil
}

// maskKey は鍵の先頭だけを残す。
func maskKey(key string) string {
	const visible = 8
	if len(key) <= visible {
		return key
	}
	return key[:visible]
}
