package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
)

type CheckCmd struct {
	Files []string `help:"Configuration files to check." arg:"" type:"existingfile"`
}

func (cmd *CheckCmd) Run(kctx *kong.Context, globals *Globals, ctx context.Context) error {
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

	configs, err := l.LoadAll(ctx, cmd.Files)
	if err != nil {
		return reportConfigError(kctx.Stderr, err)
	}

	for i, cfg := range configs {
		names := cfg.Entry.Names()
		printInfof(kctx.Stdout, "%s: %d entry bundle(s)", pathStyle.Render(cmd.Files[i]), len(names))
		for _, name := range names {
			_, _ = fmt.Fprintf(kctx.Stdout, "    %s: %v\n", name, cfg.Entry[name])
		}
	}
	printSuccess(kctx.Stdout, "Check passed")
	return nil
}
