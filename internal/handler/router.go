package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DevAnupShourya/snap-stash/internal/auth"
	"github.com/DevAnupShourya/snap-stash/internal/category"
	"github.com/DevAnupShourya/snap-stash/internal/metrics"
	"github.com/DevAnupShourya/snap-stash/internal/middleware"
	"github.com/DevAnupShourya/snap-stash/internal/task"
)

// RouterDeps はルーター構築に必要な依存をまとめる。
type RouterDeps struct {
	Logger        *slog.Logger
	DB            *sql.DB
	AuthService   *auth.Service
	Categories    *category.Service
	Tasks         *task.Service
	RateLimiter   *middleware.RateLimiter
	Cookies       middleware.CookieConfig
	Metrics       *metrics.Collector
	Gatherer      prometheus.Gatherer
	AllowedOrigin string
}

// NewRouter はAPI全体のルーティングを構築する。
// /auth・/health・/metrics以外のエンドポイントはすべてセッション認証を要求する。
func NewRouter(deps RouterDeps) http.Handler {
	authHandler := NewAuthHandler(deps.AuthService, deps.Cookies)
	categoryHandler := NewCategoryHandler(deps.Categories)
	taskHandler := NewTaskHandler(deps.Tasks)

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.AllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	// 認証前のエンドポイント。認証試行はIP単位のレート制限で保護する。
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())
		r.Post("/auth", authHandler.Login)
	})
	r.Post("/auth/logout", authHandler.Logout)

	r.Get("/health", newHealthHandler(deps.DB))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// 認証必須のエンドポイント。セッション検証の後にセッション単位の
	// レート制限を適用する。
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.AuthService, deps.Cookies))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/category", func(r chi.Router) {
			r.Get("/", categoryHandler.List)
			r.Post("/", categoryHandler.Create)
			r.Get("/{category-id}", categoryHandler.Get)
			r.Put("/{category-id}", categoryHandler.Update)
			r.Delete("/{category-id}", categoryHandler.Delete)
			r.Get("/{category-id}/stats", categoryHandler.Stats)
		})

		r.Route("/task", func(r chi.Router) {
			r.Get("/", taskHandler.List)
			r.Post("/", taskHandler.Create)
			r.Patch("/bulk", taskHandler.BulkUpdate)
			r.Get("/{task-id}", taskHandler.Get)
			r.Put("/{task-id}", taskHandler.Update)
			r.Delete("/{task-id}", taskHandler.Delete)
			r.Patch("/{task-id}/toggle", taskHandler.Toggle)
		})
	})

	return r
}

// healthResponse は/healthのpayload。
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// newHealthHandler はDB接続確認込みのヘルスチェックハンドラーを返す。
func newHealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteEnvelope(w, http.StatusServiceUnavailable, middleware.Envelope{
					Success: false,
					Message: "Service unhealthy",
					Payload: healthResponse{Status: "unhealthy", Database: "unreachable"},
				})
				return
			}
		}

		middleware.WriteSuccess(w, http.StatusOK, "Service healthy", healthResponse{
			Status:   "ok",
			Database: "reachable",
		})
	}
}
