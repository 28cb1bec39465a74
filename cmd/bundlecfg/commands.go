package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.miragespace.co/bundlecfg"
	"go.miragespace.co/bundlecfg/loader"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultBootstrap = loader.DefaultBootstrap

// Globals defines global flags available to all commands.
type Globals struct {
	Bootstrap   string            `help:"Module prepended to every entry bundle. Empty disables normalization." default:"${bootstrap}"`
	Mode        string            `help:"Override the configuration mode (production, development, none)."`
	Env         map[string]string `help:"Values passed as the env argument to exported config functions (key=value)." mapsep:","`
	Timeout     time.Duration     `help:"Maximum time to evaluate a configuration." default:"30s"`
	Concurrency int               `help:"Configurations evaluated at once." default:"0"`
	Debug       bool              `help:"Enable debug logging."`
}

type Commands struct {
	Globals

	Normalize NormalizeCmd `cmd:"" help:"Print the normalized configuration."`
	Check     CheckCmd     `cmd:"" help:"Load and validate one or more configurations."`
	Build     BuildCmd     `cmd:"" help:"Bundle the configured entries with esbuild."`
	Serve     ServeCmd     `cmd:"" help:"Run the configuration HTTP service."`
}

// errReported marks a failure that has already been printed.
var errReported = errors.New("bundlecfg: error reported")

// reportConfigError prints configuration errors and turns them into
// errReported. Other errors are returned unchanged.
func reportConfigError(w io.Writer, err error) error {
	var cfgErr *bundlecfg.ConfigurationError
	if errors.As(err, &cfgErr) {
		printError(w, err.Error())
		return errReported
	}
	return err
}

func (g *Globals) logger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if g.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func (g *Globals) loader(logger *zap.Logger) (*loader.Loader, error) {
	envArgs := make(map[string]any, len(g.Env))
	for k, v := range g.Env {
		envArgs[k] = v
	}
	opts := []loader.Option{
		loader.WithBootstrap(g.Bootstrap),
		loader.WithMode(g.Mode),
		loader.WithRuntimeOptions(bundlecfg.RuntimeOptions{EnvArgs: envArgs}),
	}
	if g.Concurrency > 0 {
		opts = append(opts, loader.WithConcurrency(g.Concurrency))
	}
	return loader.New(logger, opts...)
}

// withTimeout bounds configuration evaluation.
func (g *Globals) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.Timeout)
}

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D7D7", Dark: "#00D7D7"})
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		successStyle.Render(successSymbol),
		message,
	)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		errorStyle.Render(errorSymbol),
		errorStyle.Render(message),
	)
}

func printInfof(w io.Writer, format string, args ...any) {
	formatted := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(w, "%s %s\n",
		infoStyle.Render(infoSymbol),
		formatted,
	)
}
