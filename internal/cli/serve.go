package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/turnos-booking/internal/config"
	"github.com/iliyamo/turnos-booking/internal/handler"
	"github.com/iliyamo/turnos-booking/internal/middleware"
	"github.com/iliyamo/turnos-booking/internal/queue"
	"github.com/iliyamo/turnos-booking/internal/router"
	"github.com/iliyamo/turnos-booking/internal/sweeper"
)

func NewServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the retention sweeper and, in queue mode, the notification consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cache := middleware.NewResponseCache(cacheCfg, a.rdb)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("http: %s %s %d %s rid=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	router.RegisterRoutes(e)
	router.RegisterBooking(e, handler.NewBookingHandler(a.booking, a.availability), middleware.RateLimit(rlCfg, a.rdb), cache)

	sw := &sweeper.Sweeper{
		Target:    a.booking,
		Interval:  cfg.PurgeInterval,
		Retention: cfg.RetentionWindow,
		HoldTTL:   cfg.HoldTTL,
		OnChange: func(ctx context.Context) {
			if err := cache.Bust(ctx); err != nil {
				log.Printf("sweeper: cache invalidation failed: %v", err)
			}
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(sw.Run(gctx))
	})
	if cfg.NotifyMode == config.NotifyQueue {
		g.Go(func() error {
			return ignoreCanceled(queue.StartConsumer(gctx, cfg.RabbitMQURL, a.delivery))
		})
	}

	err = g.Wait()
	log.Printf("server stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
