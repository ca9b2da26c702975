package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roboricindustries/raycon-micbridge/pkg/api"
	"github.com/roboricindustries/raycon-micbridge/pkg/channel"
	"github.com/roboricindustries/raycon-micbridge/pkg/channel/amqphost"
	"github.com/roboricindustries/raycon-micbridge/pkg/channel/wshost"
	"github.com/roboricindustries/raycon-micbridge/pkg/config"
	"github.com/roboricindustries/raycon-micbridge/pkg/lifecycle"
	"github.com/roboricindustries/raycon-micbridge/pkg/pubsub"
	"github.com/roboricindustries/raycon-micbridge/pkg/shell"
)

const shutdownTimeout = 10 * time.Second

var serveOpts struct {
	listen    string
	transport string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge and the local control API",
	Long: `Run the bridge until interrupted.

Transports:
  ws        content connects to the bridge path over a websocket
  amqp      content messages arrive as envelopes on the broker
  loopback  one JSON message per line on stdin, replies on stdout`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.listen, "listen", "", "listen address, overrides MICBRIDGE_LISTEN_ADDR")
	serveCmd.Flags().StringVar(&serveOpts.transport, "transport", "", "ws, amqp or loopback, overrides MICBRIDGE_TRANSPORT")
}

func loadConfig() (config.Config, error) {
	return config.Load(func(c *config.Config) {
		if serveOpts.listen != "" {
			c.ListenAddr = serveOpts.listen
		}
		if serveOpts.transport != "" {
			c.Transport = serveOpts.transport
		}
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fsys := afero.NewOsFs()
	device, err := newDevice(cfg, fsys, logger)
	if err != nil {
		return err
	}
	policy, err := lifecycle.ParsePolicy(cfg.BackgroundPolicy)
	if err != nil {
		return err
	}

	pub, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect publisher: %w", err)
	}
	defer pub.Close()
	hook, events := newHook(pub, cfg, logger)
	defer events.Close()

	var (
		host   channel.Host
		bridge http.Handler
		sub    pubsub.Subscriber
		loop   *channel.Loopback
	)
	switch cfg.Transport {
	case config.TransportWebSocket:
		ws := wshost.New(cfg.AllowedOrigins, logger)
		defer ws.Close()
		host, bridge = ws, ws
	case config.TransportAMQP:
		sub, err = newSubscriber(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("connect subscriber: %w", err)
		}
		defer sub.Close()
		host = amqphost.New(pub, sub, cfg.Producer, logger)
	case config.TransportLoopback:
		loop = channel.NewLoopback(64)
		host = loop
	}

	sh, err := shell.New(shell.Options{
		Host:              host,
		Authorizer:        newAuthorizer(cfg, fsys),
		Device:            device,
		Hook:              hook,
		Logger:            logger,
		BackgroundPolicy:  policy,
		EmitFailureEvents: cfg.EmitFailureEvents,
		SendTimeout:       cfg.SendTimeout,
	})
	if err != nil {
		return err
	}
	if sub != nil {
		if err := sub.Start(cfg.AMQPQueue); err != nil {
			return fmt.Errorf("start subscriber: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(sh, cfg.BridgePath, bridge, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	goBridge(gctx, g, sh, loop, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	g.Go(func() error {
		logger.Info("listening",
			slog.String("addr", cfg.ListenAddr),
			slog.String("transport", cfg.Transport),
			slog.String("bridge_path", cfg.BridgePath))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	logger.Info("stopped", slog.Any("err", err))
	return err
}
