// Package server exposes configuration normalization over HTTP. Uploaded
// configuration files are loaded, normalized and kept in a store by name.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"go.miragespace.co/bundlecfg"
	"go.miragespace.co/bundlecfg/loader"
	"go.miragespace.co/bundlecfg/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	pool "github.com/libp2p/go-buffer-pool"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MaxUploadSize bounds the size of an uploaded configuration file.
const MaxUploadSize = 1 << 20

// DefaultEvalTimeout applies when Options.EvalTimeout is not set.
const DefaultEvalTimeout = 30 * time.Second

type Options struct {
	// Dir anchors relative paths in uploaded configurations.
	Dir string
	// EvalTimeout bounds loading a single uploaded configuration.
	EvalTimeout time.Duration
}

type Server struct {
	logger      *zap.Logger
	loader      *loader.Loader
	store       store.Store
	dir         string
	evalTimeout time.Duration
}

func New(logger *zap.Logger, l *loader.Loader, s store.Store, opts Options) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("nil logger is invalid")
	}
	if l == nil || s == nil {
		return nil, fmt.Errorf("loader and store are required")
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	evalTimeout := opts.EvalTimeout
	if evalTimeout <= 0 {
		evalTimeout = DefaultEvalTimeout
	}
	return &Server{
		logger:      logger.With(zap.String("component", "server")),
		loader:      l,
		store:       s,
		dir:         dir,
		evalTimeout: evalTimeout,
	}, nil
}

func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Mount("/debug", middleware.Profiler())
	router.Route("/configs", func(r chi.Router) {
		r.Get("/", s.listConfigs)
		r.Put("/{name}", s.putConfig)
		r.Get("/{name}", s.getConfig)
		r.Get("/{name}/entry", s.getEntry)
		r.Delete("/{name}", s.deleteConfig)
	})
	return router
}

func (s *Server) listConfigs(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.write(w, r, http.StatusOK, map[string]any{"configs": keys})
}

func (s *Server) putConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := store.ValidateKey(name); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	var form *multipart.Reader
	form, err := r.MultipartReader()
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("request is not multipart"))
		return
	}

	var p *multipart.Part
	p, err = form.NextPart()
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	if p.FormName() != "file" {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("expecting \"file\" field in request"))
		return
	}

	src, err := io.ReadAll(p)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("failed to read configuration from body: %w", err))
		return
	}

	filename := filepath.Join(s.dir, filepath.Base(p.FileName()))
	loadCtx, cancel := context.WithTimeout(r.Context(), s.evalTimeout)
	cfg, err := s.loader.LoadSource(loadCtx, filename, src)
	cancel()
	if err != nil {
		s.fail(w, http.StatusUnprocessableEntity, err)
		return
	}

	tree := cfg.Tree()
	val, err := json.Marshal(tree)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.store.Put(r.Context(), name, val); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	s.logger.Info("Configuration stored",
		zap.String("name", name),
		zap.String("filename", p.FileName()),
		zap.Int("size", len(src)),
	)
	s.write(w, r, http.StatusCreated, tree)
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	tree, ok := s.load(w, r)
	if !ok {
		return
	}
	s.write(w, r, http.StatusOK, tree)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	tree, ok := s.load(w, r)
	if !ok {
		return
	}
	s.write(w, r, http.StatusOK, tree["entry"])
}

func (s *Server) deleteConfig(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.Del(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if !deleted {
		s.fail(w, http.StatusNotFound, store.ErrKeyNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	val, err := s.store.Get(r.Context(), chi.URLParam(r, "name"))
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		s.fail(w, http.StatusNotFound, err)
		return nil, false
	case errors.Is(err, store.ErrInvalidKey):
		s.fail(w, http.StatusBadRequest, err)
		return nil, false
	case err != nil:
		s.fail(w, http.StatusInternalServerError, err)
		return nil, false
	}

	var tree map[string]any
	if err := json.Unmarshal(val, &tree); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return tree, true
}

// write encodes v as JSON, or as YAML when the request asks for ?format=yaml.
func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, v any) {
	b := pool.NewBuffer(nil)
	defer b.Reset()

	contentType := "application/json"
	var err error
	if r.URL.Query().Get("format") == "yaml" {
		contentType = "application/yaml"
		enc := yaml.NewEncoder(b)
		enc.SetIndent(2)
		err = enc.Encode(v)
		if err == nil {
			err = enc.Close()
		}
	} else {
		enc := json.NewEncoder(b)
		enc.SetIndent("", "  ")
		err = enc.Encode(v)
	}
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(b.Bytes())
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}

	body := map[string]any{"error": err.Error()}
	var cfgErr *bundlecfg.ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Path != "" {
		body["path"] = cfgErr.Path
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
