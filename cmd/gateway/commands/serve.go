package commands

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/api"
	"github.com/ZentaChain/zentalk-gateway/pkg/config"
	"github.com/ZentaChain/zentalk-gateway/pkg/crypto"
	"github.com/ZentaChain/zentalk-gateway/pkg/gateway"
	"github.com/ZentaChain/zentalk-gateway/pkg/layer"
	"github.com/ZentaChain/zentalk-gateway/pkg/rpc"
	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept client connections and serve the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	salts, err := crypto.NewSalts([]byte(cfg.Crypto.SaltSecret), cfg.Crypto.SaltWindow.D())
	if err != nil {
		return err
	}

	var backend rpc.Backend
	switch cfg.RPC.Backend {
	case config.BackendRedis:
		if backend, err = rpc.NewRedisBackend(ctx, rt.rdb, cfg.RPC.Queue, log); err != nil {
			return err
		}
	default:
		backend = rpc.NewLocalBackend(rt.handler, cfg.RPC.Workers, log)
	}
	dispatcher := rpc.NewDispatcher(backend, cfg.RPC.Timeout.D(), log)
	defer dispatcher.Close()

	sessions := session.NewManager(cfg.Layer.Current)
	gcfg := gateway.DefaultConfig()
	gcfg.Limits.MaxFrameSize = cfg.Gateway.MaxFrameSize
	gcfg.IdleTimeout = cfg.Gateway.IdleTimeout.D()
	gcfg.GzipThreshold = cfg.Gateway.GzipThreshold
	gcfg.MinLayer = cfg.Layer.Min

	srv := gateway.NewServer(gcfg, gateway.Deps{
		Keys:           rt.db.AuthKeys(),
		Authorizations: rt.db.Authorizations(),
		Sessions:       sessions,
		Broker:         rt.broker,
		Membership:     rt.members,
		Invoker:        dispatcher,
		Layers:         layer.Default(),
		Salts:          salts,
	}, log)

	ln, err := net.Listen("tcp", cfg.Gateway.Addr)
	if err != nil {
		return err
	}

	acfg := api.DefaultConfig()
	acfg.Addr = cfg.API.Addr
	acfg.RateLimit = cfg.API.RateLimit
	status := api.NewServer(acfg, api.Sources{
		Gateway:    srv,
		Dispatcher: dispatcher,
		Storage:    rt.db,
		Sessions:   sessions,
	}, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, gateway.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Gateway.WSAddr != "" {
		ws := &http.Server{Addr: cfg.Gateway.WSAddr, Handler: srv.WebSocketHandler()}
		g.Go(func() error {
			log.Info("websocket transport listening", zap.String("addr", cfg.Gateway.WSAddr))
			if err := ws.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return ws.Shutdown(shutdownCtx)
		})
	}
	if cfg.API.Addr != "" {
		g.Go(func() error { return status.Start(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		return srv.Close()
	})
	return g.Wait()
}
