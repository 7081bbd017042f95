package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/nao1215/pushhub/internal/dispatch"
	"github.com/nao1215/pushhub/pkg/httpclient"
	"github.com/spf13/cobra"
)

// sendResponse は一斉配信APIのレスポンス。
type sendResponse struct {
	// Message は結果の要約メッセージ。
	Message string `json:"message"`
	dispatch.Result
}

// newSendCommand は全購読へ通知を送信するsendコマンドを生成する。
func newSendCommand() *cobra.Command {
	var (
		payload dispatch.Payload
		custom  bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "全購読へ通知を送信する",
		Example: `  # 既定のタイトルと本文で送信する
  pushctl send

  # タイトルと本文を指定して送信する
  pushctl send --custom --title "メンテナンス" --message "22時から停止します"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			server, err := cmd.Flags().GetString("server")
			if err != nil {
				return err
			}
			path := "/api/send-notification"
			if custom {
				if err := payload.ValidateStrict(); err != nil {
					return err
				}
				path = "/api/send-custom-notification"
			}
			return runSend(cmd.Context(), cmd.OutOrStdout(), httpclient.New(server), path, payload)
		},
	}

	cmd.Flags().StringVar(&payload.Title, "title", "", "通知のタイトル")
	cmd.Flags().StringVar(&payload.Message, "message", "", "通知の本文")
	cmd.Flags().StringVar(&payload.Icon, "icon", "", "通知アイコンのパス")
	cmd.Flags().StringVar(&payload.URL, "url", "", "通知クリック時の遷移先")
	cmd.Flags().BoolVar(&custom, "custom", false, "タイトルと本文を必須としてカスタム通知を送信する")
	return cmd
}

// runSend は一斉配信APIを呼び出して購読ごとの結果を出力する。
func runSend(ctx context.Context, out io.Writer, client *httpclient.Client, path string, payload dispatch.Payload) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = httpclient.WithRequestID(ctx, uuid.NewString())

	var resp sendResponse
	if err := client.PostJSON(ctx, path, payload, &resp); err != nil {
		return fmt.Errorf("通知の送信に失敗: %w", err)
	}

	fmt.Fprintln(out, resp.Message)
	fmt.Fprintf(out, "成功: %d 失敗: %d\n", resp.SuccessCount, resp.FailureCount)
	for _, o := range resp.Outcomes {
		if o.Status == dispatch.StatusSuccess {
			continue
		}
		line := fmt.Sprintf("  %s: %s", o.Endpoint, o.Class)
		if o.StatusCode != 0 {
			line += fmt.Sprintf(" (status=%d)", o.StatusCode)
		}
		if o.Evicted {
			line += " 削除済み"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
