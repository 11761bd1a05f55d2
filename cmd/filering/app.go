package filering

import (
	"fmt"
	"runtime"

	"go.miragespace.co/filering/cmd/peer"
	"go.miragespace.co/filering/cmd/rendezvous"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Build = "head"
)

var (
	App = cli.App{
		Name:            "filering",
		Usage:           fmt.Sprintf("build for %s on %s", runtime.GOARCH, runtime.GOOS),
		Version:         Build,
		HideHelpCommand: true,
		Description:     "a 16 slot chord ring of peers that store and locate files, bootstrapped by a rendezvous service",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Value:   false,
				Usage:   "enable verbose logging",
				EnvVars: []string{"FILERING_VERBOSE"},
			},
		},
		Commands: []*cli.Command{
			rendezvous.Generate(),
			peer.Generate(),
		},
		Before: ConfigLogger,
	}
)

func ConfigLogger(ctx *cli.Context) error {
	var config zap.Config
	if ctx.Bool("verbose") {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}
	// Redirect everything to stderr
	config.OutputPaths = []string{"stderr"}
	logger, err := config.Build()
	if err != nil {
		return err
	}
	_, err = zap.RedirectStdLogAt(logger.With(zap.String("subsystem", "unknown")), zapcore.InfoLevel)
	if err != nil {
		return fmt.Errorf("redirecting stdlog output: %w", err)
	}
	ctx.App.Metadata["logger"] = logger

	return nil
}
