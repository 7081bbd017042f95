package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/nao1215/pushhub/pkg/httpclient"
	"github.com/spf13/cobra"
)

// subscriptionsResponse は購読一覧APIのレスポンス。
type subscriptionsResponse struct {
	Total         int `json:"total"`
	Subscriptions []struct {
		Endpoint string `json:"endpoint"`
	} `json:"subscriptions"`
}

// newSubscriptionsCommand は登録済み購読を一覧表示するコマンドを生成する。
func newSubscriptionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "subscriptions",
		Short: "登録済みの購読を一覧表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			server, err := cmd.Flags().GetString("server")
			if err != nil {
				return err
			}
			return runSubscriptions(cmd.Context(), cmd.OutOrStdout(), httpclient.New(server))
		},
	}
}

// runSubscriptions は購読一覧APIを呼び出してエンドポイントを登録順に出力する。
func runSubscriptions(ctx context.Context, out io.Writer, client *httpclient.Client) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var resp subscriptionsResponse
	if err := client.GetJSON(ctx, "/api/subscriptions", &resp); err != nil {
		return fmt.Errorf("購読一覧の取得に失敗: %w", err)
	}

	fmt.Fprintf(out, "購読数: %d\n", resp.Total)
	for i, s := range resp.Subscriptions {
		fmt.Fprintf(out, "%d. %s\n", i+1, s.Endpoint)
	}
	return nil
}
