package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.miragespace.co/bundlecfg/server"
	"go.miragespace.co/bundlecfg/store"
	_ "go.miragespace.co/bundlecfg/store/dir"
	_ "go.miragespace.co/bundlecfg/store/memory"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
)

type ServeCmd struct {
	Addr  string `help:"Listen address." default:":8081"`
	Store string `help:"Store URI (memory://, dir://path)." default:"memory://"`
	Dir   string `help:"Directory that relative paths in uploaded configurations resolve against." default:"." type:"path"`
}

func (cmd *ServeCmd) Run(kctx *kong.Context, globals *Globals, ctx context.Context) error {
	logger, err := globals.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	l, err := globals.loader(logger)
	if err != nil {
		return err
	}

	s, err := store.Open(cmd.Store)
	if err != nil {
		return err
	}

	srv, err := server.New(logger, l, s, server.Options{Dir: cmd.Dir, EvalTimeout: globals.Timeout})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cmd.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("ready", zap.String("addr", cmd.Addr), zap.String("store", cmd.Store))

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
