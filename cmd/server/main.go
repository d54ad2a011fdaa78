package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stackit/internal/auth"
	"stackit/internal/bus"
	"stackit/internal/cache"
	"stackit/internal/config"
	"stackit/internal/db"
	clog "stackit/internal/log"
	"stackit/internal/mail"
	"stackit/internal/otel"
	"stackit/internal/server"
	"stackit/internal/service"
	"stackit/internal/ws"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"
)

const relaySubject = "stackit.relay"

func main() {
	root := &cobra.Command{
		Use:          "stackit",
		Short:        "StackIt Q&A backend",
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context()) },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and websocket server",
			RunE:  func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE:  func(cmd *cobra.Command, _ []string) error { return migrate(cmd.Context()) },
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("stackit exited")
		os.Exit(1)
	}
}

// bootstrap 读取 .env 与环境变量，初始化日志并连接数据库。
func bootstrap(ctx context.Context) (config.Config, *gorm.DB, error) {
	_ = godotenv.Load()
	cfg, err := config.Load(ctx)
	if err != nil {
		return cfg, nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, nil, err
	}
	clog.Init(cfg.Env)

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		return cfg, nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		_ = db.Close(gdb)
		return cfg, nil, err
	}
	return cfg, gdb, nil
}

func migrate(ctx context.Context) error {
	_, gdb, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	log.Info().Msg("migrations applied")
	return db.Close(gdb)
}

func serve(ctx context.Context) error {
	cfg, gdb, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	if cfg.OTLPEndpoint != "" {
		shutdown, err := otel.Init(ctx, "stackit", cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	store, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer store.Close()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		return err
	}

	var mailer mail.Mailer = mail.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}

	var providers []auth.Provider
	if cfg.GoogleClientID != "" {
		providers = append(providers, auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.PublicURL+"/api/v1/auth/google/callback"))
	}
	if cfg.GitHubClientID != "" {
		providers = append(providers, auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.PublicURL+"/api/v1/auth/github/callback"))
	}
	state := auth.NewStateManager(cfg.CookieHashKey, cfg.CookieBlockKey, cfg.Env != "dev")

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := ws.NewHub()
	if cfg.NATSURL != "" {
		relayLog := clog.Component("relay")
		b, err := bus.New(cfg.NATSURL, nats.Name("stackit"))
		if err != nil {
			return err
		}
		defer b.Close()
		hub.SetFanout(ws.NewBusFanout(b, relaySubject))
		sub, err := b.Subscribe(hubCtx, relaySubject, hub.HandleBusMessage)
		if err != nil {
			return err
		}
		defer sub.Close()
		relayLog.Info().Str("subject", relaySubject).Msg("relay fanout over nats")
	}
	go hub.Run(hubCtx)

	services := service.NewSet(gdb, store, mailer, tokens, hub, service.Options{
		OTPTTL:      cfg.OTPTTL,
		VerifiedTTL: cfg.VerifiedTTL,
	})
	engine, stopLimiters := server.SetupRouter(server.Deps{
		Config:    cfg,
		Tokens:    tokens,
		Services:  services,
		Hub:       hub,
		Providers: providers,
		State:     state,
	})
	defer stopLimiters()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(engine, "stackit"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
