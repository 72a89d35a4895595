package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scrapinghelper/scrapinghelper/pkg/config"
	"github.com/scrapinghelper/scrapinghelper/pkg/fetch"
	"github.com/scrapinghelper/scrapinghelper/pkg/proxypool"
	"github.com/scrapinghelper/scrapinghelper/pkg/storage"
	"github.com/scrapinghelper/scrapinghelper/pkg/useragent"
)

// app carries the state shared by every subcommand
type app struct {
	configPath string
	logLevel   string
	envFile    string

	cfg *config.AppConfig
	log *logrus.Logger
	out io.Writer
}

var (
	validMark   = color.New(color.FgGreen).SprintFunc()
	invalidMark = color.New(color.FgRed).SprintFunc()
)

func newRootCmd() *cobra.Command {
	a := &app{log: logrus.New()}

	root := &cobra.Command{
		Use:           "scrapinghelper",
		Short:         "scrapinghelper validates URLs and proxies, rotates proxy pools and fetches pages through them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "Path to YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "loglevel", "", "Log level (trace, debug, info, warn, error); overrides config")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")

	root.AddCommand(
		a.validateCmd(),
		a.parseCmd(),
		a.proxiesCmd(),
		a.fetchCmd(),
		a.linksCmd(),
		a.downloadCmd(),
	)
	return root
}

// setup loads the dotenv file and config and configures logging
func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	a.log.SetOutput(cmd.ErrOrStderr())
	a.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})

	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) || cmd.Flags().Changed("env-file") {
				a.log.Warnf("Failed to load env file '%s': %v", a.envFile, err)
			}
		}
	}

	cfg, err := config.Load(a.configPath, !cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return err
	}
	a.cfg = cfg

	levelName := cfg.LogLevel
	if a.logLevel != "" {
		levelName = a.logLevel
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		a.log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", levelName, err)
		level = logrus.InfoLevel
	}
	a.log.SetLevel(level)
	for _, w := range warnings {
		a.log.Warn(w)
	}
	return nil
}

func (a *app) entry(component string) *logrus.Entry {
	return a.log.WithField("component", component)
}

func (a *app) newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(a.out)
	return t
}

// rotation returns the --rotate flag value, or the configured rotation when unset
func (a *app) rotation(cmd *cobra.Command) (proxypool.Rotation, error) {
	if !cmd.Flags().Changed("rotate") {
		return a.cfg.Rotation(), nil
	}
	value, _ := cmd.Flags().GetString("rotate")
	return proxypool.ParseRotation(value)
}

// newPool loads a proxy pool from ref, or from the configured source when ref is empty
func (a *app) newPool(ctx context.Context, ref string) (*proxypool.Pool, error) {
	src := a.cfg.PoolSource()
	if ref != "" {
		src = proxypool.ParseSource(ref)
	}
	opts := append(a.cfg.PoolOptions(), proxypool.WithLogger(a.entry("proxypool")))
	return proxypool.New(ctx, src, opts...)
}

// newScraper builds a scraper. The pool is only loaded when rot needs one.
// The returned cleanup closes the ledger, if any.
func (a *app) newScraper(ctx context.Context, rot proxypool.Rotation, withLedger bool) (*fetch.Scraper, func(), error) {
	var pool *proxypool.Pool
	if rot != proxypool.RotateNoProxy {
		var err error
		if pool, err = a.newPool(ctx, ""); err != nil {
			return nil, nil, err
		}
	}
	agents, err := useragent.Load(a.cfg.UserAgents.Path, a.cfg.EffectiveKeep())
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var opts []fetch.ScraperOption
	if withLedger && a.cfg.Download.StateDir != "" {
		ledger, err := storage.NewBadgerLedger(a.cfg.Download.StateDir, a.entry("ledger"))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, fetch.WithLedger(ledger))
		cleanup = func() {
			if err := ledger.Close(); err != nil {
				a.log.Warnf("Closing ledger: %v", err)
			}
		}
	}
	return fetch.NewScraper(a.cfg, pool, agents, a.entry("fetch"), opts...), cleanup, nil
}

func mark(ok bool) string {
	if ok {
		return validMark("valid")
	}
	return invalidMark("invalid")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func portString(port int, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprint(port)
}
