package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

type NormalizeCmd struct {
	File   string `help:"Configuration file (.js, .cjs, .yaml, .yml, .json, .hcl)." arg:"" type:"existingfile"`
	Format string `help:"Output format." enum:"json,yaml" default:"json" short:"f"`
	Output string `help:"Write to this file instead of stdout." short:"o" type:"path"`
}

func (cmd *NormalizeCmd) Run(kctx *kong.Context, globals *Globals, ctx context.Context) error {
	logger, err := globals.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	l, err := globals.loader(logger)
	if err != nil {
		return err
	}

	ctx, cancel := globals.withTimeout(ctx)
	defer cancel()

	cfg, err := l.Load(ctx, cmd.File)
	if err != nil {
		return reportConfigError(kctx.Stderr, err)
	}

	var out []byte
	switch cmd.Format {
	case "yaml":
		out, err = yaml.Marshal(cfg.Tree())
	default:
		out, err = json.MarshalIndent(cfg.Tree(), "", "  ")
		out = append(out, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	if cmd.Output == "" {
		_, err = kctx.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(cmd.Output, out, 0o644); err != nil {
		return err
	}
	printSuccess(kctx.Stderr, fmt.Sprintf("Wrote %s", pathStyle.Render(cmd.Output)))
	return nil
}
