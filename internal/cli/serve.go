package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/catdog-api/internal/handlers"
	"github.com/Brownie44l1/catdog-api/internal/metrics"
	"github.com/Brownie44l1/catdog-api/internal/pipeline"
	"github.com/Brownie44l1/catdog-api/internal/server"
	"github.com/Brownie44l1/catdog-api/internal/telegram"
)

func newServeCommand(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	gin.SetMode(gin.ReleaseMode)
	metrics.Register()

	log.Infof("Loading model from: %s", cfg.ModelPath)
	clf, err := a.loadClassifier()
	if err != nil {
		return err
	}
	defer clf.Close()
	metrics.ModelLoaded.Set(1)
	defer metrics.ModelLoaded.Set(0)

	info := clf.Info()
	log.WithFields(log.Fields{
		"input":  info.InputShape.String(),
		"scheme": info.Input.Scheme,
		"sha256": info.SHA256,
	}).Infof("Model loaded: %s", info.Path)

	pl, err := pipeline.New(clf, a.pipelineOptions())
	if err != nil {
		return err
	}

	router, err := server.NewRouter(handlers.NewHandler(pl), server.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxUploadBytes:     cfg.MaxUploadBytes(),
	})
	if err != nil {
		return err
	}

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, pl, cfg.MaxUploadBytes())
		if err != nil {
			return fmt.Errorf("failed to start telegram bot: %w", err)
		}
		// Registered after clf.Close, so the bot is gone before the model.
		defer runBackground(ctx, "telegram bot", bot)()
	}

	log.Infof("Rate limit: %d requests per minute", cfg.RateLimitPerMinute)
	log.Infof("Allowed origins: %s", cfg.AllowedOrigins)
	log.Infof("Upload test: curl -X POST -F \"image=@cat.jpg\" http://localhost:%s/predict/image", cfg.Port)

	return server.Run(ctx, ":"+cfg.Port, router)
}

type runner interface {
	Run(ctx context.Context) error
}

// runBackground starts r on its own goroutine. The returned func cancels r
// and blocks until Run has returned.
func runBackground(ctx context.Context, name string, r runner) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.Run(ctx); err != nil {
			log.WithError(err).Errorf("%s stopped", name)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
