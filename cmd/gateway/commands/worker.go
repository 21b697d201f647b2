package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ZentaChain/zentalk-gateway/pkg/config"
	"github.com/ZentaChain/zentalk-gateway/pkg/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func workerCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Execute RPC calls from the Redis queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.RPC.Backend != config.BackendRedis || cfg.PubSub.Backend != config.BackendRedis {
				return fmt.Errorf("worker needs rpc.backend and pubsub.backend set to redis")
			}
			if concurrency > 0 {
				cfg.RPC.Workers = concurrency
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return work(ctx, cfg, log)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "concurrent calls (default rpc.workers)")
	return cmd
}

func work(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	w := rpc.NewRedisWorker(rt.rdb, cfg.RPC.Queue, rt.handler, cfg.RPC.Workers, log)
	log.Info("rpc worker started", zap.String("queue", cfg.RPC.Queue), zap.Int("concurrency", cfg.RPC.Workers))
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
