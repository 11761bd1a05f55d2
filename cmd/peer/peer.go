package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.miragespace.co/filering/chord"
	"go.miragespace.co/filering/overlay"
	chordSpec "go.miragespace.co/filering/spec/chord"
	"go.miragespace.co/filering/spec/protocol"
	"go.miragespace.co/filering/util"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func Generate() *cli.Command {
	return &cli.Command{
		Name:  "peer",
		Usage: "start a peer that stores and locates files on the ring",
		Description: `The peer opens an interactive menu when stdin is a terminal. Otherwise it joins the ring,
	serves until it receives a termination signal, then hands its files to its successor before exit.

	Flags override values from the config file.`,
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:     "config",
				Usage:    "Path to a YAML config file",
				EnvVars:  []string{"FILERING_CONFIG"},
				Category: "Peer Options",
			},
			&cli.IntFlag{
				Name:        "id",
				DefaultText: "derived from advertise-addr",
				Usage:       fmt.Sprintf("Node identifier on the ring, between 0 and %d", chordSpec.RingSize-1),
				EnvVars:     []string{"FILERING_ID"},
				Category:    "Peer Options",
			},
			&cli.BoolFlag{
				Name:     "headless",
				Usage:    "Join right away and skip the interactive menu even on a terminal",
				Category: "Peer Options",
			},

			&cli.StringFlag{
				Name:     "rendezvous",
				Value:    "127.0.0.1:5000",
				Usage:    "Address of the rendezvous service",
				EnvVars:  []string{"FILERING_RENDEZVOUS"},
				Category: "Network Options",
			},
			&cli.StringFlag{
				Name:     "listen-addr",
				Aliases:  []string{"listen"},
				Value:    "127.0.0.1:0",
				Usage:    "Address and port to accept peer traffic on",
				EnvVars:  []string{"FILERING_LISTEN"},
				Category: "Network Options",
			},
			&cli.StringFlag{
				Name:        "advertise-addr",
				Aliases:     []string{"advertise"},
				DefaultText: "the bound listen address",
				Usage:       "Address announced to the rendezvous service and other peers",
				Category:    "Network Options",
			},
			&cli.UintFlag{
				Name:     "dial-attempts",
				Value:    1,
				Usage:    "Connection attempts per outbound message. 1 disables retry",
				Category: "Network Options",
			},
			&cli.DurationFlag{
				Name:     "dial-timeout",
				Value:    time.Second * 3,
				Usage:    "Timeout for each connection attempt",
				Category: "Network Options",
			},

			&cli.StringFlag{
				Name:     "debug-addr",
				Aliases:  []string{"debug"},
				Usage:    "Serve ring stats and graph over http on this address. Absent of this flag disables it",
				Category: "Debug Options",
			},
		},
		Action: cmdPeer,
	}
}

func stringOverride(ctx *cli.Context, name string, target *string) {
	if ctx.IsSet(name) || *target == "" {
		*target = ctx.String(name)
	}
}

func configFromContext(ctx *cli.Context) (*Config, error) {
	cfg := &Config{
		Version: configVersion,
	}
	if path := ctx.Path("config"); path != "" {
		var err error
		cfg, err = NewConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if ctx.IsSet("id") {
		id := ctx.Int("id")
		cfg.ID = &id
	}
	stringOverride(ctx, "rendezvous", &cfg.Rendezvous)
	stringOverride(ctx, "listen-addr", &cfg.Listen)
	stringOverride(ctx, "advertise-addr", &cfg.Advertise)
	stringOverride(ctx, "debug-addr", &cfg.Debug)
	if ctx.IsSet("dial-attempts") || cfg.DialAttempts == 0 {
		cfg.DialAttempts = ctx.Uint("dial-attempts")
	}
	if ctx.IsSet("dial-timeout") || cfg.DialTimeout == 0 {
		cfg.DialTimeout = ctx.Duration("dial-timeout")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printResult(out io.Writer, msg *protocol.Message) {
	c := color.New(color.FgRed)
	if msg.Found {
		c = color.New(color.FgGreen)
	}
	c.Fprintf(out, "[%s] %s\n", msg.RequestID, msg.Text)
}

func cmdPeer(ctx *cli.Context) error {
	logger, ok := ctx.App.Metadata["logger"].(*zap.Logger)
	if !ok || logger == nil {
		return errors.New("logger is not configured")
	}

	cfg, err := configFromContext(ctx)
	if err != nil {
		return err
	}

	tp, err := overlay.NewTCP(overlay.TransportConfig{
		Logger:       logger.With(zap.String("component", "transport")),
		ListenAddr:   cfg.Listen,
		Advertise:    cfg.Advertise,
		DialAttempts: cfg.DialAttempts,
		DialTimeout:  cfg.DialTimeout,
	})
	if err != nil {
		return err
	}
	if err := tp.Listen(); err != nil {
		return err
	}
	defer tp.Stop()

	var id int
	if cfg.ID != nil {
		id = *cfg.ID
	} else {
		id = chordSpec.IdentityID(tp.Identity())
		logger.Info("Derived node id from address", zap.Int("id", id), zap.String("address", tp.Identity()))
	}

	out := color.Output
	node, err := chord.NewLocalNode(chord.NodeConfig{
		Logger:     logger.With(zap.String("component", "node")),
		ID:         id,
		Transport:  tp,
		Rendezvous: cfg.Rendezvous,
		ResultHandler: func(msg *protocol.Message) {
			printResult(out, msg)
		},
	})
	if err != nil {
		return err
	}

	svcCtx, cancel := context.WithCancel(ctx.Context)
	defer cancel()

	go node.HandleRPC(svcCtx)
	go func() {
		if err := tp.Accept(svcCtx); err != nil {
			logger.Error("Transport stopped accepting connections", zap.Error(err))
		}
	}()

	if cfg.Debug != "" {
		debugServer := &http.Server{
			Addr:              cfg.Debug,
			Handler:           chord.StatsHandler(node),
			ReadHeaderTimeout: time.Second * 5,
			ErrorLog:          util.GetStdLogger(logger, "debug_server"),
		}
		defer debugServer.Close()
		go func() {
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Debug server stopped", zap.Error(err))
			}
		}()
		logger.Info("Debug server started", zap.String("debug", cfg.Debug))
	}

	guard := chord.NewTerminationGuard(node)
	defer guard.Recover()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	interactive := !ctx.Bool("headless") && term.IsTerminal(int(os.Stdin.Fd()))
	if !interactive {
		return runHeadless(svcCtx, logger, node, guard, sigs)
	}

	// the menu blocks on stdin, so a signal ends the process from here
	go func() {
		if sig := guard.Watch(svcCtx, sigs); sig != nil {
			tp.Stop()
			os.Exit(1)
		}
	}()

	m := &menu{
		ctx:   svcCtx,
		node:  node,
		guard: guard,
		out:   out,
	}
	return m.run()
}

func runHeadless(ctx context.Context, logger *zap.Logger, node *chord.LocalNode, guard *chord.TerminationGuard, sigs <-chan os.Signal) error {
	joinCtx, cancel := context.WithTimeout(ctx, opTimeout)
	err := node.Join(joinCtx)
	cancel()
	if err != nil {
		return err
	}

	if sig := guard.Watch(ctx, sigs); sig == nil {
		logger.Info("context done", zap.Error(ctx.Err()))
		guard.Handoff()
	}
	return nil
}
