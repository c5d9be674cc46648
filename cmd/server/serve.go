package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/bassista/snapgram/internal/api/route"
	appctx "github.com/bassista/snapgram/internal/app"
	"github.com/bassista/snapgram/internal/config"
	"github.com/bassista/snapgram/internal/logger"
	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(confPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*confPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func loadConfig(confPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(confPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := logger.SetLevel(cfg.Misc.LogLevel); err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', using 'info': %v", cfg.Misc.LogLevel, err)
	}
	logger.WithComponent("main").Debugf("log level set to: %s", logger.Logger.GetLevel())
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger.WithComponent("main").Infof("App will run on port: %d", cfg.Server.Port)

	app, err := appctx.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cannot init app: %w", err)
	}
	defer app.Shutdown()

	if err := app.StartWatchers(); err != nil {
		return err
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := route.SetupRoutes(app, logger.Logger)
	srv := createGraceHttpServer(app.BaseCtx, "main-server", cfg.Server, r)

	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func createGraceHttpServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	srv := httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
	return srv
}
