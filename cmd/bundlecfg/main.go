package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var (
	// Version contains the application version number. It's set via ldflags
	// when building.
	Version = ""

	// CommitSHA contains the SHA of the commit that this application was built
	// against. It's set via ldflags when building.
	CommitSHA = ""

	cli CLI
)

type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Commands
}

func newParser(ctx context.Context, c *CLI, options ...kong.Option) *kong.Kong {
	return kong.Must(c, append([]kong.Option{
		kong.Vars{
			"version":   buildVersion(),
			"bootstrap": defaultBootstrap,
		},
		kong.Name("bundlecfg"),
		kong.Description("Load, normalize and build front-end bundler configurations."),
		kong.UsageOnError(),
		kong.Bind(&c.Globals),
		kong.BindTo(ctx, (*context.Context)(nil)),
	}, options...)...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	parser := newParser(ctx, &cli)
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = kctx.Run()
	if errors.Is(err, errReported) {
		stop()
		os.Exit(1)
	}
	kctx.FatalIfErrorf(err)
}

func buildVersion() string {
	if Version == "" {
		Version = "dev"
	}
	if CommitSHA == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, CommitSHA)
}
