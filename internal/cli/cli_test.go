package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nao1215/pushhub/internal/vapid"
)

// executeCommand はpushctlを引数付きで実行し、標準出力と標準エラーの内容を返す。
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// parseEnvLines はKEY=VALUE形式の行を読み取る。
func parseEnvLines(s string) map[string]string {
	m := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		k, v, ok := strings.Cut(line, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}

// TestKeysGenerate はkeys generateコマンドを検証する。
func TestKeysGenerate(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := executeCommand(t, "keys", "generate")
	if err != nil {
		t.Fatalf("keys generateでエラーが発生: %v", err)
	}

	env := parseEnvLines(stdout)
	keys := vapid.Keys{PublicKey: env["VAPID_PUBLIC_KEY"], PrivateKey: env["VAPID_PRIVATE_KEY"]}
	if err := vapid.Check(keys); err != nil {
		t.Errorf("生成された鍵の検証に失敗: %v (stdout=%s)", err, stdout)
	}
	if len(env) != 2 {
		t.Errorf("標準出力の行数 = %d, want 2 (stdout=%s)", len(env), stdout)
	}
	if !strings.Contains(stderr, "公開鍵の長さ: 87") {
		t.Errorf("標準エラーに長さの確認が含まれない: %s", stderr)
	}
}

// TestKeysCheck はkeys checkコマンドを検証する。
func TestKeysCheck(t *testing.T) {
	t.Parallel()

	keys, err := vapid.Generate()
	if err != nil {
		t.Fatalf("VAPID鍵の生成に失敗: %v", err)
	}
	other, err := vapid.Generate()
	if err != nil {
		t.Fatalf("VAPID鍵の生成に失敗: %v", err)
	}

	t.Run("正しい鍵ペアではOKが出力されること", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeCommand(t, "keys", "check", "--public-key", keys.PublicKey, "--private-key", keys.PrivateKey)
		if err != nil {
			t.Fatalf("keys checkでエラーが発生: %v", err)
		}
		if !strings.Contains(stdout, "結果: OK") {
			t.Errorf("出力にOKが含まれない: %s", stdout)
		}
		if strings.Contains(stdout, keys.PrivateKey) {
			t.Error("秘密鍵が全文出力されている")
		}
	})

	t.Run("対応しない鍵ペアではエラーになること", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCommand(t, "keys", "check", "--public-key", keys.PublicKey, "--private-key", other.PrivateKey)
		if !errors.Is(err, vapid.ErrKeyMismatch) {
			t.Errorf("error = %v, want vapid.ErrKeyMismatch", err)
		}
	})

	t.Run("形式が不正な公開鍵では形式の説明が出力されること", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeCommand(t, "keys", "check", "--public-key", "Bshort", "--private-key", keys.PrivateKey)
		if !errors.Is(err, vapid.ErrInvalidPublicKey) {
			t.Errorf("error = %v, want vapid.ErrInvalidPublicKey", err)
		}
		if !strings.Contains(stdout, "87文字") {
			t.Errorf("出力に形式の説明が含まれない: %s", stdout)
		}
	})
}

// TestRunKeysCheck は鍵が未指定の場合の検証を行う。
func TestRunKeysCheck(t *testing.T) {
	t.Parallel()

	err := runKeysCheck(new(bytes.Buffer), vapid.Keys{})
	if !errors.Is(err, vapid.ErrMissingKey) {
		t.Errorf("error = %v, want vapid.ErrMissingKey", err)
	}
}

// TestSend はsendコマンドを検証する。
func TestSend(t *testing.T) {
	t.Parallel()

	t.Run("既定の送信APIが呼ばれ失敗した購読が出力されること", func(t *testing.T) {
		t.Parallel()

		var gotPath, gotRequestID string
		var gotBody map[string]any
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotRequestID = r.Header.Get("X-Request-ID")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.Write([]byte(`{"message":"通知を1件の購読に送信しました","id":"d1","successCount":1,"failureCount":1,` +
				`"outcomes":[{"endpoint":"https://push.example.com/a","status":"success"},` +
				`{"endpoint":"https://push.example.com/b","status":"failure","class":"gone","statusCode":410,"evicted":true}]}`))
		}))
		defer ts.Close()

		stdout, _, err := executeCommand(t, "send", "--server", ts.URL, "--title", "Hi")
		if err != nil {
			t.Fatalf("sendでエラーが発生: %v", err)
		}
		if gotPath != "/api/send-notification" {
			t.Errorf("path = %q, want %q", gotPath, "/api/send-notification")
		}
		if gotRequestID == "" {
			t.Error("X-Request-IDが付与されていない")
		}
		if gotBody["title"] != "Hi" {
			t.Errorf("title = %v, want %q", gotBody["title"], "Hi")
		}
		if !strings.Contains(stdout, "成功: 1 失敗: 1") {
			t.Errorf("出力に集計が含まれない: %s", stdout)
		}
		if !strings.Contains(stdout, "https://push.example.com/b: gone (status=410) 削除済み") {
			t.Errorf("出力に失敗した購読が含まれない: %s", stdout)
		}
		if strings.Contains(stdout, "https://push.example.com/a:") {
			t.Errorf("成功した購読が出力されている: %s", stdout)
		}
	})

	t.Run("customではカスタム通知APIが呼ばれること", func(t *testing.T) {
		t.Parallel()

		var gotPath string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Write([]byte(`{"message":"ok","id":"d1","successCount":1,"failureCount":0,"outcomes":[]}`))
		}))
		defer ts.Close()

		_, _, err := executeCommand(t, "send", "--server", ts.URL, "--custom", "--title", "T", "--message", "M")
		if err != nil {
			t.Fatalf("sendでエラーが発生: %v", err)
		}
		if gotPath != "/api/send-custom-notification" {
			t.Errorf("path = %q, want %q", gotPath, "/api/send-custom-notification")
		}
	})

	t.Run("customでタイトルがない場合はリクエストせずにエラーになること", func(t *testing.T) {
		t.Parallel()

		called := false
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		_, _, err := executeCommand(t, "send", "--server", ts.URL, "--custom", "--message", "M")
		if err == nil {
			t.Fatal("sendがエラーを返すべきだが、nilが返った")
		}
		if called {
			t.Error("サーバーが呼び出された")
		}
	})

	t.Run("購読がない場合はサーバーのエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"有効な購読がありません"}`))
		}))
		defer ts.Close()

		_, _, err := executeCommand(t, "send", "--server", ts.URL)
		if err == nil || !strings.Contains(err.Error(), "有効な購読がありません") {
			t.Errorf("error = %v, want サーバーのエラーを含む", err)
		}
	})
}

// TestSubscriptions はsubscriptionsコマンドを検証する。
func TestSubscriptions(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/subscriptions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"total":2,"subscriptions":[{"endpoint":"https://push.example.com/a"},{"endpoint":"https://push.example.com/b"}]}`))
	}))
	defer ts.Close()

	stdout, _, err := executeCommand(t, "subscriptions", "--server", ts.URL)
	if err != nil {
		t.Fatalf("subscriptionsでエラーが発生: %v", err)
	}
	want := "購読数: 2\n1. https://push.example.com/a\n2. https://push.example.com/b\n"
	if stdout != want {
		t.Errorf("出力 = %q, want %q", stdout, want)
	}
}
