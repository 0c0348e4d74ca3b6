package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/guillermoBallester/maskit/internal/config"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "maskit",
		Usage:   "Rule-based field masking for JSON documents",
		Version: version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			serveCommand(),
			applyCommand(),
			compileCommand(),
			saveCommand(),
			showCommand(),
			listCommand(),
			deleteCommand(),
		},
	}
}

// globalFlags mirror the environment variables read by config.Load.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "env-file", Usage: "Load environment variables from this file (default .env when present)"},
		&cli.StringFlag{Name: "database-url", Usage: "PostgreSQL URL for saved masks; in-memory store when empty"},
		&cli.StringFlag{Name: "rules-file", Aliases: []string{"r"}, Usage: "YAML rule catalog"},
		&cli.StringFlag{Name: "mask-char", Usage: "Mask character"},
		&cli.StringFlag{Name: "mask-separator", Usage: "Segment separator used by the first/last helpers"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: "transport", Usage: "stdio or http"},
		&cli.StringFlag{Name: "http-addr", Usage: "Listen address for the http transport"},
		&cli.StringFlag{Name: "http-bearer-token", Usage: "Bearer token required by the http transport"},
		&cli.StringFlag{Name: "audit-log", Usage: "Append NDJSON audit entries to this file"},
		&cli.BoolFlag{Name: "otel", Usage: "Enable OpenTelemetry tracing and metrics"},
		&cli.IntFlag{Name: "pool-max-conns", Usage: "Maximum database connections"},
		&cli.IntFlag{Name: "pool-min-conns", Usage: "Minimum database connections"},
		&cli.DurationFlag{Name: "pool-max-conn-lifetime", Usage: "Maximum lifetime of a database connection"},
	}
}

// overridesFrom collects the global flags that were set on the command line.
func overridesFrom(c *cli.Command) config.Overrides {
	var o config.Overrides
	str := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}
	o.EnvFile = str("env-file")
	o.DatabaseURL = str("database-url")
	o.RulesFile = str("rules-file")
	o.MaskChar = str("mask-char")
	o.MaskSeparator = str("mask-separator")
	o.LogLevel = str("log-level")
	o.Transport = str("transport")
	o.HTTPAddr = str("http-addr")
	o.HTTPBearerToken = str("http-bearer-token")
	o.AuditLog = str("audit-log")
	o.OTelEnabled = c.Bool("otel")

	if c.IsSet("pool-max-conns") {
		n := int32(c.Int("pool-max-conns"))
		o.PoolMaxConns = &n
	}
	if c.IsSet("pool-min-conns") {
		n := int32(c.Int("pool-min-conns"))
		o.PoolMinConns = &n
	}
	if c.IsSet("pool-max-conn-lifetime") {
		d := c.Duration("pool-max-conn-lifetime")
		o.PoolMaxConnLifetime = &d
	}
	return o
}

// parseFlags parses global flags only. Used by tests.
func parseFlags(args []string) (config.Overrides, error) {
	var o config.Overrides
	cmd := &cli.Command{
		Name:      "maskit",
		Flags:     globalFlags(),
		Writer:    io.Discard,
		ErrWriter: io.Discard,
		Action: func(_ context.Context, c *cli.Command) error {
			o = overridesFrom(c)
			return nil
		},
	}
	err := cmd.Run(context.Background(), append([]string{"maskit"}, args...))
	return o, err
}

// redactDSN replaces the password in a database URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
