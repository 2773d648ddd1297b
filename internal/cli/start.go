package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-arena/internal/app"
	"quiz-arena/internal/config"
	infraredis "quiz-arena/internal/infra/redis"
	transport "quiz-arena/internal/transport/http"
	"quiz-arena/internal/transport/tcp"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, addr, httpAddr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *addr, *httpAddr)
		},
	}
}

func runServer(ctx context.Context, configPath, addrFlag, httpAddrFlag string) error {
	log := slog.Default()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}
	if httpAddrFlag != "" {
		cfg.Server.HTTPAddr = httpAddrFlag
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	bank := questionSource(cfg, st, log)
	if topics, err := bank.Topics(ctx); err != nil {
		log.Warn("bank: initial load failed", "error", err)
	} else {
		log.Info("bank: topics available", "topics", topics)
	}

	var observer app.RoomObserver
	if st.redis != nil {
		markers := infraredis.NewRoomMarkers(st.redis, 0)
		if err := markers.Clear(ctx); err != nil {
			log.Warn("room marker: clear failed", "error", err)
		}
		observer = markers
	}

	sessions := app.NewSessionRegistry(cfg.Server.AdminName, cfg.Server.MailboxSize)
	rooms := app.NewRoomRegistry(bank, app.RoomOptions{
		Timing:   roomTiming(cfg),
		Observer: observer,
		Logger:   log,
	})
	dispatcher := app.NewDispatcher(sessions, rooms, bank, app.Options{
		AdminUpdateInterval: config.TTLDuration(cfg.Server.AdminUpdateInterval, 2*time.Second),
		Logger:              log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tcp.NewServer(cfg.Server.Addr, dispatcher, log).ListenAndServe(gctx)
	})
	if cfg.Server.HTTPAddr != "" {
		g.Go(func() error {
			return transport.NewGateway(dispatcher, log).ListenAndServe(gctx, cfg.Server.HTTPAddr)
		})
	}
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		dispatcher.Shutdown(context.WithoutCancel(gctx))
		return nil
	})
	return g.Wait()
}
