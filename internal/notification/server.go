package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/pushhub/internal/dispatch"
	"github.com/nao1215/pushhub/internal/subscription"
	"github.com/nao1215/pushhub/pkg/middleware"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout はグレースフルシャットダウンを待つ時間。
const shutdownTimeout = 10 * time.Second

// Config はサーバーの設定。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// VAPIDPublicKey はブラウザに配布するVAPID公開鍵。
	VAPIDPublicKey string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
}

// Server はプッシュ通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// publicKey はブラウザに配布するVAPID公開鍵。
	publicKey string
	// registry は購読レジストリ。
	registry *subscription.Registry
	// dispatcher は通知の一斉配信を行う。
	dispatcher *dispatch.Dispatcher
}

// NewServer は新しいプッシュ通知サーバーを生成する。
func NewServer(cfg Config, registry *subscription.Registry, dispatcher *dispatch.Dispatcher) *Server {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:     router,
		port:       cfg.Port,
		publicKey:  cfg.VAPIDPublicKey,
		registry:   registry,
		dispatcher: dispatcher,
	}
	s.setupRoutes()
	return s
}

// Handler はルーティング済みのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve はHTTPサーバーを起動し、ctxがキャンセルされるまでブロックする。
// キャンセル後は処理中のリクエストを待ってから停止する。
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.port),
		Handler: s.router,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Println("[Server] シャットダウンします")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		// VAPID公開鍵の取得
		api.GET("/vapid-public-key", s.handleVAPIDPublicKey())
		// 購読の登録
		api.POST("/subscribe", s.handleSubscribe())
		// 購読の解除
		api.POST("/unsubscribe", s.handleUnsubscribe())
		// 購読一覧の取得
		api.GET("/subscriptions", s.handleListSubscriptions())
		// 既定値付きの一斉配信
		api.POST("/send-notification", s.handleSendNotification())
		// タイトルと本文必須の一斉配信
		api.POST("/send-custom-notification", s.handleSendCustomNotification())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "pushhub"})
	})
}

// keysBody は購読の鍵のJSON構造。
type keysBody struct {
	// P256dh は購読者のP-256公開鍵。
	P256dh string `json:"p256dh" binding:"required"`
	// Auth は購読者の認証シークレット。
	Auth string `json:"auth" binding:"required"`
}

// subscriptionBody はブラウザのPushSubscriptionのJSON構造。
type subscriptionBody struct {
	// Endpoint はプッシュサービスのエンドポイントURL。
	Endpoint string `json:"endpoint" binding:"required"`
	// Keys はペイロード暗号化用の鍵。
	Keys keysBody `json:"keys"`
}

// subscribeRequest は購読登録リクエストのJSON構造。
type subscribeRequest struct {
	// Subscription は登録する購読。
	Subscription *subscriptionBody `json:"subscription" binding:"required"`
}

// endpointBody は購読解除に必要な最小限の購読情報。
type endpointBody struct {
	// Endpoint は解除するエンドポイントURL。
	Endpoint string `json:"endpoint" binding:"required"`
}

// unsubscribeRequest は購読解除リクエストのJSON構造。
type unsubscribeRequest struct {
	// Subscription は解除する購読。
	Subscription *endpointBody `json:"subscription" binding:"required"`
}

// subscriptionSummary は購読一覧で返す購読の要約。
type subscriptionSummary struct {
	// Endpoint はプッシュサービスのエンドポイントURL。
	Endpoint string `json:"endpoint"`
}

// listResponse は購読一覧のJSONレスポンス構造。
type listResponse struct {
	// Total は購読数。
	Total int `json:"total"`
	// Subscriptions は購読の要約。
	Subscriptions []subscriptionSummary `json:"subscriptions"`
}

// dispatchResponse は一斉配信のJSONレスポンス構造。
type dispatchResponse struct {
	// Message は結果の要約メッセージ。
	Message string `json:"message"`
	*dispatch.Result
}

// handleVAPIDPublicKey はブラウザが購読に使うVAPID公開鍵を返すハンドラ。
func (s *Server) handleVAPIDPublicKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"publicKey": s.publicKey})
	}
}

// handleSubscribe は購読を登録するハンドラ。
// 同じエンドポイントが既に登録されている場合は鍵を置き換える。
func (s *Server) handleSubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		sub := subscription.Subscription{
			Endpoint: req.Subscription.Endpoint,
			Keys: subscription.Keys{
				P256dh: req.Subscription.Keys.P256dh,
				Auth:   req.Subscription.Keys.Auth,
			},
		}
		if err := s.registry.Add(c.Request.Context(), sub); err != nil {
			s.respondError(c, err, "購読の保存に失敗しました")
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "購読を保存しました"})
	}
}

// handleUnsubscribe は購読を解除するハンドラ。
// 登録されていないエンドポイントの解除も成功として扱う。
func (s *Server) handleUnsubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req unsubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if err := subscription.ValidateEndpoint(req.Subscription.Endpoint); err != nil {
			s.respondError(c, err, "")
			return
		}

		removed, err := s.registry.Remove(c.Request.Context(), req.Subscription.Endpoint)
		if err != nil {
			s.respondError(c, err, "購読の削除に失敗しました")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "購読を削除しました", "removed": removed})
	}
}

// handleListSubscriptions は登録済み購読のエンドポイント一覧を返すハンドラ。
// 暗号化用の鍵は返さない。
func (s *Server) handleListSubscriptions() gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := s.registry.List(c.Request.Context())
		if err != nil {
			s.respondError(c, err, "購読一覧の取得に失敗しました")
			return
		}

		summaries := make([]subscriptionSummary, 0, len(subs))
		for _, sub := range subs {
			summaries = append(summaries, subscriptionSummary{Endpoint: sub.Endpoint})
		}
		c.JSON(http.StatusOK, listResponse{Total: len(summaries), Subscriptions: summaries})
	}
}

// handleSendNotification は全購読へ通知を一斉配信するハンドラ。
// 未指定のフィールドには既定値を使う。ボディ自体を省略してもよい。
func (s *Server) handleSendNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload dispatch.Payload
		if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		s.dispatch(c, payload, "通知を%d件の購読に送信しました")
	}
}

// handleSendCustomNotification はタイトルと本文を必須として一斉配信するハンドラ。
func (s *Server) handleSendCustomNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload dispatch.Payload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if err := payload.ValidateStrict(); err != nil {
			s.respondError(c, err, "")
			return
		}
		s.dispatch(c, payload, "カスタム通知を%d件の購読に送信しました")
	}
}

// dispatch は一斉配信を実行して結果を返す共通処理。
// 個々の配信失敗があっても200を返し、購読が0件の場合のみ400を返す。
func (s *Server) dispatch(c *gin.Context, payload dispatch.Payload, messageFormat string) {
	result, err := s.dispatcher.Dispatch(c.Request.Context(), payload)
	if err != nil {
		s.respondError(c, err, "通知の配信に失敗しました")
		return
	}

	c.JSON(http.StatusOK, dispatchResponse{
		Message: fmt.Sprintf(messageFormat, result.SuccessCount),
		Result:  result,
	})
}

// respondError はエラーの種類に応じたステータスでエラーレスポンスを返す。
// 入力エラーと購読0件は400、それ以外はinternalMessageを付けて500とする。
func (s *Server) respondError(c *gin.Context, err error, internalMessage string) {
	switch {
	case errors.Is(err, subscription.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrNoSubscribers):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalMessage})
		log.Printf("[Server] %s (request_id=%s): %v", internalMessage, middleware.GetRequestID(c), err)
	}
}
