package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/trustnet/trustnet-go/internal/model"
	"github.com/trustnet/trustnet-go/internal/scoring"
)

func (a *app) scoreCmd() *cli.Command {
	noModel := &cli.BoolFlag{
		Name:  "no-model",
		Usage: "Score with heuristics only",
	}
	return &cli.Command{
		Name:  "score",
		Usage: "Score one input and print the result",
		Flags: []cli.Flag{noModel},
		Commands: []*cli.Command{
			{
				Name:      "url",
				Usage:     "Score a URL",
				ArgsUsage: "<url>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return a.score(ctx, cmd, func(e *scoring.Engine) (*scoring.Result, error) {
						return e.Score(scoring.Input{Kind: scoring.KindURL, Value: cmd.Args().First()})
					})
				},
			},
			{
				Name:      "email",
				Usage:     "Score an email body (from the arguments, or stdin when none are given)",
				ArgsUsage: "[body...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Email subject"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					body := strings.Join(cmd.Args().Slice(), " ")
					if body == "" {
						b, err := io.ReadAll(a.stdin)
						if err != nil {
							return fmt.Errorf("read stdin: %w", err)
						}
						body = string(b)
					}
					return a.score(ctx, cmd, func(e *scoring.Engine) (*scoring.Result, error) {
						return e.Score(scoring.Input{Kind: scoring.KindEmail, Value: body, Subject: cmd.String("subject")})
					})
				},
			},
			{
				Name:      "qr-text",
				Usage:     "Score the decoded payload of a QR code",
				ArgsUsage: "<text>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return a.score(ctx, cmd, func(e *scoring.Engine) (*scoring.Result, error) {
						return e.Score(scoring.Input{Kind: scoring.KindQRText, Value: cmd.Args().First()})
					})
				},
			},
			{
				Name:      "qr-image",
				Usage:     "Decode a QR code image (PNG, JPEG or GIF) and score its payload",
				ArgsUsage: "<file|->",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					img, err := a.readInput(cmd.Args().First())
					if err != nil {
						return err
					}
					return a.score(ctx, cmd, func(e *scoring.Engine) (*scoring.Result, error) {
						return e.ScoreQRImage(img)
					})
				},
			},
			{
				Name:      "eml",
				Usage:     "Score a raw RFC 822 message",
				ArgsUsage: "<file|->",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					raw, err := a.readInput(cmd.Args().First())
					if err != nil {
						return err
					}
					return a.score(ctx, cmd, func(e *scoring.Engine) (*scoring.Result, error) {
						return e.ScoreEmailMessage(bytes.NewReader(raw))
					})
				},
			},
		},
	}
}

// score builds an engine, runs fn and prints the result.
func (a *app) score(ctx context.Context, cmd *cli.Command, fn func(*scoring.Engine) (*scoring.Result, error)) error {
	allow, err := a.allowlist()
	if err != nil {
		return err
	}

	var models scoring.Models
	if !cmd.Bool("no-model") {
		store := model.NewStore(a.cfg.ModelSource(), a.cfg.LoadOptions(), a.logger)
		// a failed load is logged and scoring stays heuristic-only
		store.Reload(ctx)
		models = store
	}

	res, err := fn(scoring.New(allow, models, nil, a.logger))
	if err != nil {
		return err
	}
	return a.encode(res)
}

// readInput reads a file, or stdin for "-".
func (a *app) readInput(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, fmt.Errorf("a file argument is required")
	case "-":
		return io.ReadAll(a.stdin)
	}
	return os.ReadFile(path)
}
