package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Simplici0/forma/internal/cart"
	"github.com/Simplici0/forma/internal/catalog"
	"github.com/Simplici0/forma/internal/checkout"
	"github.com/Simplici0/forma/internal/config"
	"github.com/Simplici0/forma/internal/db"
	"github.com/Simplici0/forma/internal/imagegen"
	"github.com/Simplici0/forma/internal/logger"
	"github.com/Simplici0/forma/internal/migrations"
	"github.com/Simplici0/forma/internal/notify"
	"github.com/Simplici0/forma/internal/receipt"
	"github.com/Simplici0/forma/internal/seed"
)

type imageGenerator interface {
	TextToImage(ctx context.Context, prompt string) (imagegen.Image, error)
	DrawToImage(ctx context.Context, sketchDataURL, prompt string) (imagegen.Image, error)
}

type server struct {
	auth         *authService
	catalog      *catalog.Store
	carts        *cart.Store
	checkout     *checkout.Service
	images       imageGenerator
	receipts     *receipt.Renderer
	log          *zap.Logger
	generatedDir string
	secure       bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
	log.Info("server shutdown gracefully")
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	for _, warning := range cfg.Warnings() {
		log.Warn(warning)
	}

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(ctx, database.DB); err != nil {
			return fmt.Errorf("run database migrations: %w", err)
		}
	}

	stats, err := seed.Run(ctx, database.DB, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	log.Info("seed completed", zap.Int("inserts", stats.Inserts))

	var cartBackend cart.Backend
	redisBackend := cart.NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisBackend.Close()
	if err := redisBackend.Ping(ctx); err != nil {
		if !cfg.IsDev() {
			return fmt.Errorf("connect redis at %s: %w", cfg.RedisAddr, err)
		}
		log.Warn("redis unavailable, keeping carts in memory", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		cartBackend = cart.NewMemoryBackend()
	} else {
		cartBackend = redisBackend
	}

	var notifier checkout.Notifier = notify.Nop{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
		if err != nil {
			log.Warn("telegram notifications disabled", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	receipts, err := receipt.NewRenderer(cfg.ReceiptFontFile)
	if err != nil {
		return err
	}

	carts := cart.NewStore(cartBackend, cfg.CartTTL)
	srv := &server{
		auth:     newAuthService(database, cfg.SessionSecret, !cfg.IsDev()),
		catalog:  catalog.NewStore(database),
		carts:    carts,
		checkout: checkout.NewService(database, carts, notifier, cfg.HomeDeliveryFee, log),
		images: imagegen.New(imagegen.Config{
			HFToken:    cfg.HFToken,
			HFModelURL: cfg.HFModelURL,
			GeminiKey:  cfg.GeminiKey,
			GeminiURL:  cfg.GeminiURL,
			OutputDir:  cfg.GeneratedDir,
			URLPrefix:  "/generated",
			Timeout:    cfg.HTTPRequestTimeout,
		}, log),
		receipts:     receipts,
		log:          log,
		generatedDir: cfg.GeneratedDir,
		secure:       !cfg.IsDev(),
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.HTTPRequestTimeout + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/generated/*", http.StripPrefix("/generated/", http.FileServer(http.Dir(s.generatedDir))))

	r.Route("/api", func(r chi.Router) {
		r.Post("/price", s.handlePrice)
		r.Get("/catalog", s.handleCatalog)

		r.Get("/cart", s.handleCartGet)
		r.Delete("/cart", s.handleCartClear)
		r.Post("/cart/items", s.handleCartAdd)
		r.Patch("/cart/items/{id}", s.handleCartUpdate)
		r.Delete("/cart/items/{id}", s.handleCartRemove)

		r.Post("/checkout", s.handleCheckout)
		r.Get("/orders/{id}/receipt.pdf", s.handleReceipt)

		r.Post("/ai/text-to-image", s.handleTextToImage)
		r.Post("/ai/draw-to-image", s.handleDrawToImage)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
	})
	r.Get("/login", s.handleLoginForm)
	r.Post("/login", s.handleLoginSubmit)
	r.Post("/logout", s.handleLogout)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.auth.requireAdmin)
		r.Get("/materials", s.handleAdminMaterialsForm)
		r.Post("/materials", s.handleAdminMaterialsCreate)
		r.Post("/materials/{key}", s.handleAdminMaterialsUpdate)
		r.Get("/print-rates", s.handleAdminPrintRatesForm)
		r.Post("/print-rates", s.handleAdminPrintRatesSubmit)
		r.Get("/addons", s.handleAdminAddonsForm)
		r.Post("/addons", s.handleAdminAddonsSubmit)
		r.Get("/designs", s.handleAdminDesignsForm)
		r.Post("/designs", s.handleAdminDesignsCreate)
		r.Post("/designs/{id}", s.handleAdminDesignsUpdate)
		r.Get("/orders", s.handleAdminOrders)
		r.Get("/orders/export.xlsx", s.handleAdminOrdersExport)
	})

	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
