package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/trustnet/trustnet-go/internal/features"
	"github.com/trustnet/trustnet-go/internal/model"
)

// validation is the report printed by model validate.
type validation struct {
	Source    string          `json:"source" yaml:"source"`
	Valid     bool            `json:"valid" yaml:"valid"`
	Version   string          `json:"version,omitempty" yaml:"version,omitempty"`
	Kinds     []features.Kind `json:"kinds" yaml:"kinds"`
	Artifacts []model.Info    `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
}

func (a *app) modelCmd() *cli.Command {
	return &cli.Command{
		Name:  "model",
		Usage: "Inspect the configured model bundle",
		Commands: []*cli.Command{
			{
				Name:   "inspect",
				Usage:  "Load the bundle and print the store status",
				Action: a.modelInspect,
			},
			{
				Name:   "validate",
				Usage:  "Load every artifact and fail unless all of them are usable",
				Action: a.modelValidate,
			},
		},
	}
}

func (a *app) modelInspect(ctx context.Context, _ *cli.Command) error {
	store := model.NewStore(a.cfg.ModelSource(), a.cfg.LoadOptions(), a.logger)
	// the status carries the load error, if any
	store.Reload(ctx)
	return a.encode(store.Status())
}

func (a *app) modelValidate(ctx context.Context, _ *cli.Command) error {
	src := a.cfg.ModelSource()
	b, err := model.Load(ctx, src, a.cfg.LoadOptions())

	report := validation{Source: src.String(), Valid: err == nil, Kinds: b.Kinds()}
	if b != nil {
		report.Version = b.Version
		for _, k := range report.Kinds {
			report.Artifacts = append(report.Artifacts, b.Artifact(k).Info())
		}
	}
	if err != nil {
		report.Error = err.Error()
	}
	if encErr := a.encode(report); encErr != nil {
		return encErr
	}
	if err != nil {
		return fmt.Errorf("model bundle is not valid: %w", err)
	}
	return nil
}
