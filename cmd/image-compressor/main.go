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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/image-compressor/internal/api/handlers/status"
	"github.com/aliskhannn/image-compressor/internal/api/router"
	"github.com/aliskhannn/image-compressor/internal/api/server"
	"github.com/aliskhannn/image-compressor/internal/config"
	"github.com/aliskhannn/image-compressor/internal/kafka/producer"
	"github.com/aliskhannn/image-compressor/internal/processor"
	imagesvc "github.com/aliskhannn/image-compressor/internal/service/image"
	"github.com/aliskhannn/image-compressor/internal/storage/file"
	"github.com/aliskhannn/image-compressor/internal/watch"
	"github.com/aliskhannn/image-compressor/internal/zlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "image-compressor",
		Short: "Watch directories and write size-bounded JPEG copies of new photos",
		Long: `image-compressor watches one or more directory trees. Every new .jpg is
downscaled into a bounding box and re-encoded at the highest quality that fits
the size budget, next to the source as <name>_compressed.jpg.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath, cmd.Flags())
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to the YAML config (default "+config.DefaultPath+" if present)")
	cmd.Flags().StringSliceP("root", "r", nil, "directory to watch, may be repeated")
	cmd.Flags().Bool("scan-existing", false, "also compress images already present at start")
	cmd.Flags().String("http-port", "", "address of the status API, e.g. :8080")
	cmd.Flags().String("log-level", "", "log level: trace, debug, info, warn, error")

	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init(cfg.Log.Format)
	if err := zlog.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	log := zlog.Logger

	if cfg.Watch.LockDir != "" {
		if err := os.MkdirAll(cfg.Watch.LockDir, 0o755); err != nil {
			return fmt.Errorf("create lock dir: %w", err)
		}
	}

	// Optional artifact sinks.
	var opts []imagesvc.Option
	if cfg.Storage.Enabled {
		storage, err := file.NewStorage(ctx, cfg.Storage, cfg.Storage.Prefix)
		if err != nil {
			return fmt.Errorf("connect to storage: %w", err)
		}
		log.Info().Str("bucket", storage.Bucket()).Msg("mirroring artifacts to object storage")
		opts = append(opts, imagesvc.WithStorage(storage))
	}
	if cfg.Kafka.Enabled {
		p := producer.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.RetryStrategy())
		defer func() {
			if err := p.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()
		log.Info().Str("topic", cfg.Kafka.Topic).Msg("publishing compression events")
		opts = append(opts, imagesvc.WithProducer(p))
	}

	service := imagesvc.NewService(processor.New(cfg.ProcessorOptions(), log), log, opts...)

	// One router and supervisor per root; they share nothing but the service.
	supervisors := make([]*watch.Supervisor, 0, len(cfg.Watch.Roots))
	routers := make([]*watch.Router, 0, len(cfg.Watch.Roots))
	for _, root := range cfg.Watch.Roots {
		r := watch.NewRouter(root, service, cfg.RouterOptions(), log)
		s, err := watch.NewSupervisor(r, cfg.SupervisorOptions(), log)
		if err != nil {
			for _, started := range supervisors {
				_ = started.Close()
			}
			return fmt.Errorf("watch %s: %w", root, err)
		}
		supervisors = append(supervisors, s)
		routers = append(routers, r)
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, s := range supervisors {
		s := s
		g.Go(func() error {
			err := s.Start(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, watch.ErrRootLocked) {
				log.Error().Err(err).Msg("root is already watched by another process")
			}
			return err
		})
	}

	if cfg.Server.HTTPPort != "" {
		h := status.NewHandler(statsSources(routers)...)
		srv := server.New(cfg.Server.HTTPPort, router.Setup(h))

		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("status api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status api: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			// Graceful shutdown with timeout for HTTP server.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			log.Info().Msg("shutting down status api")
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to shutdown status api")
			}
			return nil
		})
	}

	err := g.Wait()
	for _, r := range routers {
		st := r.Stats()
		log.Info().
			Str("root", st.Root).
			Int64("succeeded", st.Succeeded).
			Int64("failed", st.Failed).
			Msg("root summary")
	}
	if err != nil {
		log.Error().Err(err).Msg("stopped with error")
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

func statsSources(routers []*watch.Router) []status.StatsSource {
	sources := make([]status.StatsSource, 0, len(routers))
	for _, r := range routers {
		sources = append(sources, r)
	}
	return sources
}
