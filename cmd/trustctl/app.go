package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/trustnet/trustnet-go/internal/allowlist"
	"github.com/trustnet/trustnet-go/internal/config"
	"github.com/trustnet/trustnet-go/internal/server"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// app carries the state shared by every command once Before has run.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	format string
	logger *slog.Logger
	cfg    *config.Config
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	return &cli.Command{
		Name:            "trustctl",
		Usage:           "Score URLs, emails and QR codes and inspect model bundles",
		Version:         fmt.Sprintf("%s (commit: %s)", version, commit),
		HideHelpCommand: true,
		Writer:          stdout,
		ErrWriter:       stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format [json, yaml]",
				Value:   formatJSON,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a YAML config file (default: $TRUSTNET_CONFIG)",
			},
			&cli.StringFlag{
				Name:  "model-dir",
				Usage: "Load model artifacts from this directory instead of the configured source",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level for stderr [debug, info, warn, error]",
				Value: "warn",
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			a.scoreCmd(),
			a.modelCmd(),
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	switch f := strings.ToLower(cmd.String("output")); f {
	case formatJSON:
		a.format = formatJSON
	case formatYAML, "yml":
		a.format = formatYAML
	default:
		return ctx, fmt.Errorf("unsupported output format %q", f)
	}

	a.logger = server.NewLogger(a.stderr, cmd.String("log-level"), "text")

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	if dir := cmd.String("model-dir"); dir != "" {
		cfg.Model.Dir = dir
		cfg.Model.S3.Bucket = ""
	}
	a.cfg = cfg
	return ctx, nil
}

func (a *app) allowlist() (*allowlist.Matcher, error) {
	if a.cfg.AllowlistFile == "" {
		return allowlist.Default(), nil
	}
	return allowlist.Load(a.cfg.AllowlistFile)
}

func (a *app) encode(v any) error {
	if a.format == formatYAML {
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	e := json.NewEncoder(a.stdout)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
