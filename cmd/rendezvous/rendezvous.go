package rendezvous

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.miragespace.co/filering/overlay"
	"go.miragespace.co/filering/rendezvous"
	"go.miragespace.co/filering/util"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func Generate() *cli.Command {
	return &cli.Command{
		Name:      "rendezvous",
		Usage:     "start the rendezvous service that tracks live nodes",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "listen-addr",
				Aliases:  []string{"listen"},
				Value:    "127.0.0.1:5000",
				Usage:    "Address and port to accept join and leave requests on",
				EnvVars:  []string{"FILERING_RENDEZVOUS_LISTEN"},
				Category: "Network Options",
			},
			&cli.DurationFlag{
				Name:     "peer-timeout",
				Value:    time.Second * 3,
				Usage:    "Bound on each reply and membership push to a peer",
				Category: "Network Options",
			},
			&cli.StringFlag{
				Name:     "debug-addr",
				Aliases:  []string{"debug"},
				Usage:    "Serve live node stats over http on this address. Absent of this flag disables it",
				Category: "Debug Options",
			},
		},
		Action: cmdRendezvous,
	}
}

func cmdRendezvous(ctx *cli.Context) error {
	logger, ok := ctx.App.Metadata["logger"].(*zap.Logger)
	if !ok || logger == nil {
		return errors.New("logger is not configured")
	}

	tp, err := overlay.NewTCP(overlay.TransportConfig{
		Logger:     logger.With(zap.String("component", "transport")),
		ListenAddr: ctx.String("listen-addr"),
	})
	if err != nil {
		return err
	}
	if err := tp.Listen(); err != nil {
		return err
	}
	defer tp.Stop()

	srv, err := rendezvous.NewServer(rendezvous.Config{
		Logger:      logger.With(zap.String("component", "rendezvous")),
		Transport:   tp,
		PeerTimeout: ctx.Duration("peer-timeout"),
	})
	if err != nil {
		return err
	}

	svcCtx, cancel := context.WithCancel(ctx.Context)
	defer cancel()

	go srv.HandleRPC(svcCtx)
	go func() {
		if err := tp.Accept(svcCtx); err != nil {
			logger.Error("Transport stopped accepting connections", zap.Error(err))
		}
	}()

	if addr := ctx.String("debug-addr"); addr != "" {
		debugServer := &http.Server{
			Addr:              addr,
			Handler:           srv.StatsHandler(),
			ReadHeaderTimeout: time.Second * 5,
			ErrorLog:          util.GetStdLogger(logger, "debug_server"),
		}
		defer debugServer.Close()
		go func() {
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Debug server stopped", zap.Error(err))
			}
		}()
		logger.Info("Debug server started", zap.String("debug", addr))
	}

	logger.Info("Rendezvous service started", zap.String("listen", tp.Identity()))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal to stop", zap.String("signal", sig.String()))
	case <-ctx.Context.Done():
		logger.Info("context done", zap.Error(ctx.Context.Err()))
	}

	return nil
}
