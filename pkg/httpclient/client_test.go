package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// sendBody はテスト用のリクエストボディ。
type sendBody struct {
	// Title は通知タイトル。
	Title string `json:"title"`
}

// sendResult はテスト用のレスポンスボディ。
type sendResult struct {
	// SuccessCount は成功した配信数。
	SuccessCount int `json:"successCount"`
}

// TestNew はNew関数とNewWithTimeout関数を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("タイムアウトが30秒に設定されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:3001")
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})

	t.Run("ベースURL末尾のスラッシュが取り除かれること", func(t *testing.T) {
		t.Parallel()

		client := NewWithTimeout("http://localhost:3001/", time.Minute)
		if client.baseURL != "http://localhost:3001" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:3001")
		}
		if client.httpClient.Timeout != time.Minute {
			t.Errorf("Timeout = %v, want 1m", client.httpClient.Timeout)
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("JSONボディを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var gotMethod, gotPath, gotContentType string
		var gotBody sendBody
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod, gotPath = r.Method, r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"successCount":2}`))
		}))
		defer ts.Close()

		var result sendResult
		err := New(ts.URL).PostJSON(context.Background(), "/api/send-notification", sendBody{Title: "Hi"}, &result)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
		if gotMethod != http.MethodPost || gotPath != "/api/send-notification" {
			t.Errorf("request = %s %s, want POST /api/send-notification", gotMethod, gotPath)
		}
		if gotContentType != "application/json" {
			t.Errorf("Content-Type = %q, want %q", gotContentType, "application/json")
		}
		if gotBody.Title != "Hi" {
			t.Errorf("送信されたTitle = %q, want %q", gotBody.Title, "Hi")
		}
		if result.SuccessCount != 2 {
			t.Errorf("SuccessCount = %d, want 2", result.SuccessCount)
		}
	})

	t.Run("2xx以外の場合はStatusErrorが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"有効な購読がありません"}` + "\n"))
		}))
		defer ts.Close()

		err := New(ts.URL).PostJSON(context.Background(), "/api/send-notification", sendBody{}, nil)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("PostJSON() error = %v, want *StatusError", err)
		}
		if statusErr.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusBadRequest)
		}
		if statusErr.Body != `{"error":"有効な購読がありません"}` {
			t.Errorf("Body = %q", statusErr.Body)
		}
	})

	t.Run("シリアライズできないボディではエラーが返ること", func(t *testing.T) {
		t.Parallel()

		err := New("http://127.0.0.1:1").PostJSON(context.Background(), "/", make(chan int), nil)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := New(ts.URL).PostJSON(ctx, "/", sendBody{}, nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("ボディなしでGETリクエストが送信されること", func(t *testing.T) {
		t.Parallel()

		var gotBody []byte
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			w.Write([]byte(`{"total":1}`))
		}))
		defer ts.Close()

		var result struct {
			Total int `json:"total"`
		}
		if err := New(ts.URL).GetJSON(context.Background(), "/api/subscriptions", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if len(gotBody) != 0 {
			t.Errorf("GETリクエストにボディが含まれている: %q", gotBody)
		}
		if result.Total != 1 {
			t.Errorf("Total = %d, want 1", result.Total)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		var result map[string]any
		if err := New(ts.URL).GetJSON(context.Background(), "/", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		var result map[string]any
		if err := New("http://127.0.0.1:1").GetJSON(context.Background(), "/", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestWithRequestID はWithRequestID関数を検証する。
func TestWithRequestID(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストのリクエストIDがヘッダーで伝播されること", func(t *testing.T) {
		t.Parallel()

		var got string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("X-Request-ID")
			w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		ctx := WithRequestID(context.Background(), "pushctl-1")
		if err := New(ts.URL).GetJSON(ctx, "/", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got != "pushctl-1" {
			t.Errorf("X-Request-ID = %q, want %q", got, "pushctl-1")
		}
	})

	t.Run("設定されていない場合はヘッダーが付与されないこと", func(t *testing.T) {
		t.Parallel()

		var has bool
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, has = r.Header["X-Request-Id"]
			w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		if err := New(ts.URL).GetJSON(context.Background(), "/", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if has {
			t.Error("X-Request-IDヘッダーが付与された")
		}
	})
}
