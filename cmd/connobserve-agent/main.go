// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Command connobserve-agent is the demo application wiring every piece of
// the observation runtime together: a transport, an ObservableConnection
// on top of it, a Runner, and one example command submitted against the
// two once the connection comes up. Its shape - kong CLI parsing,
// goschtalt configuration, sallust/zap logging, fx dependency injection -
// is lifted directly from the teacher's own cmd/xmidt-agent.
package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goschtalt/goschtalt"
	_ "github.com/goschtalt/goschtalt/pkg/typical"
	_ "github.com/goschtalt/yaml-decoder"
	_ "github.com/goschtalt/yaml-encoder"
	"github.com/xmidt-org/sallust"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xmidt-org/connobserve/codec"
	agentcfg "github.com/xmidt-org/connobserve/config"
	"github.com/xmidt-org/connobserve/connection"
	examplecmd "github.com/xmidt-org/connobserve/examples/cmd"
	"github.com/xmidt-org/connobserve/runner"
	"github.com/xmidt-org/connobserve/transport"
)

const applicationName = "connobserve-agent"

var (
	commit  = "undefined"
	version = "undefined"
	date    = "undefined"
	builtBy = "undefined"
)

// CLI captures the command line arguments.
type CLI struct {
	Dev   bool     `optional:"" short:"d" help:"Run in development mode."`
	Show  bool     `optional:"" short:"s" help:"Show the configuration and exit."`
	Files []string `optional:"" short:"f" help:"Specific configuration files or directories."`
}

type earlyExit bool
type devMode bool

func run(args []string) error {
	var (
		gscfg *goschtalt.Config
		dev   devMode
		early earlyExit
	)

	app := fx.New(
		fx.Supply(&early),
		fx.Supply(&dev),

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		fx.Provide(
			func(d *devMode) (*CLI, error) {
				var cli CLI
				parser, err := kong.New(&cli,
					kong.Name(applicationName),
					kong.Description("Observation runtime demo agent.\n"+
						fmt.Sprintf("\tVersion:  %s\n", version)+
						fmt.Sprintf("\tDate:     %s\n", date)+
						fmt.Sprintf("\tCommit:   %s\n", commit)+
						fmt.Sprintf("\tBuilt By: %s\n", builtBy),
					),
					kong.UsageOnError(),
				)
				if err != nil {
					return nil, err
				}

				if _, err := parser.Parse(args); err != nil {
					parser.FatalIfErrorf(err)
				}

				*d = devMode(cli.Dev)
				return &cli, nil
			},

			func(cli *CLI) (*goschtalt.Config, error) {
				var err error
				gscfg, err = goschtalt.New(
					goschtalt.StdCfgLayout(applicationName, cli.Files...),
					goschtalt.ConfigIs("two_words"),
					goschtalt.AddValue("built-in", goschtalt.Root,
						agentcfg.Config{
							Name: applicationName,
							Connection: agentcfg.Connection{
								Kind:    agentcfg.TransportWebSocket,
								Newline: "\n",
							},
							Runner: agentcfg.Runner{
								Kind: agentcfg.RunnerCooperative,
								Tick: runner.DefaultTick,
							},
						},
						goschtalt.AsDefault(),
					),
				)
				return gscfg, err
			},

			goschtalt.UnmarshalFunc[agentcfg.Config](goschtalt.Root, goschtalt.Optional()),

			func(cli *CLI, cfg agentcfg.Config) (*zap.Logger, error) {
				logCfg := cfg.Logger
				if cli.Dev {
					logCfg.Level = "DEBUG"
					logCfg.Development = true
					logCfg.Encoding = "console"
					logCfg.EncoderConfig = sallust.EncoderConfig{
						TimeKey:        "T",
						LevelKey:       "L",
						NameKey:        "N",
						CallerKey:      "C",
						FunctionKey:    zapcore.OmitKey,
						MessageKey:     "M",
						StacktraceKey:  "S",
						LineEnding:     zapcore.DefaultLineEnding,
						EncodeLevel:    "capitalColor",
						EncodeTime:     "RFC3339",
						EncodeDuration: "string",
						EncodeCaller:   "short",
					}
					logCfg.OutputPaths = []string{"stderr"}
					logCfg.ErrorOutputPaths = []string{"stderr"}
				}
				return logCfg.Build()
			},

			func(cfg agentcfg.Config) (transport.Transport, error) {
				return buildTransport(cfg.Connection)
			},

			func(cfg agentcfg.Config, t transport.Transport) *connection.ObservableConnection {
				opts := []connection.Option{connection.WithNewline(cfg.Connection.Newline)}
				if cfg.Connection.WRP {
					opts = append(opts, connection.WithCodec(codec.WRP(cfg.Connection.Source, cfg.Connection.Destination)))
				}

				oc := connection.New(cfg.Name, t.Send, opts...)
				if b, ok := t.(transport.Binder); ok {
					b.Bind(oc)
				}
				return oc
			},

			func(cfg agentcfg.Config) runner.Runner {
				if cfg.Runner.Kind == agentcfg.RunnerThreaded {
					return runner.NewThreaded(runner.WithThreadedTick(cfg.Runner.Tick))
				}
				return runner.NewCooperative(runner.WithCooperativeTick(cfg.Runner.Tick))
			},
		),

		fx.Invoke(handleCLIShow),
		fx.Invoke(registerLifecycle),
	)

	if dev {
		defer func() {
			fmt.Fprintln(os.Stderr, gscfg.Explain().String())
		}()
	}

	if err := app.Err(); err != nil || early {
		return err
	}

	app.Run()
	return nil
}

func buildTransport(c agentcfg.Connection) (transport.Transport, error) {
	switch c.Kind {
	case agentcfg.TransportTCP:
		return transport.NewTCP("agent", c.URL), nil
	case agentcfg.TransportNanomsg:
		return transport.NewNanomsg("agent", c.URL), nil
	default:
		return transport.NewWebSocket("agent", c.URL), nil
	}
}

func registerLifecycle(lc fx.Lifecycle, t transport.Transport, oc *connection.ObservableConnection, r runner.Runner, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := r.Start(ctx); err != nil {
				return err
			}
			if err := t.Start(ctx); err != nil {
				return err
			}

			go runDemoCommand(oc, r, log)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			r.Shutdown()
			return t.Stop()
		},
	})
}

// runDemoCommand submits a "du" command a few seconds after startup and
// logs its result - a stand-in for whatever real work a production agent
// built on this runtime would do instead.
func runDemoCommand(oc *connection.ObservableConnection, r runner.Runner, log *zap.Logger) {
	time.Sleep(2 * time.Second)

	prompt := regexp.MustCompile(`\$\s*$`)
	du := examplecmd.NewDu("", oc.Newline(), prompt)
	du.Arm(time.Now())

	future, err := runner.Submit[examplecmd.Du](r, oc, du)
	if err != nil {
		log.Error("submit failed", zap.Error(err))
		return
	}

	if err := oc.Send(du.CommandString()); err != nil {
		log.Error("send failed", zap.Error(err))
		return
	}

	if err := future.Result(); err != nil {
		log.Warn("du cancelled", zap.Error(err))
		return
	}

	result, err := du.Result()
	if err != nil {
		log.Warn("du failed", zap.Error(err))
		return
	}

	log.Info("du result", zap.Any("result", result))
}

func handleCLIShow(cli *CLI, cfg *goschtalt.Config, early *earlyExit) {
	if !cli.Show {
		return
	}

	fmt.Fprintln(os.Stdout, cfg.Explain().String())

	out, err := cfg.Marshal()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	} else {
		fmt.Fprintln(os.Stdout, "## Final Configuration\n---\n"+string(out))
	}

	*early = earlyExit(true)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
