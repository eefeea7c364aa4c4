// Package server exposes training and prediction over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cast"

	"github.com/KaramelBytes/fairloan-cli/internal/bundle"
	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/engine"
	"github.com/KaramelBytes/fairloan-cli/internal/predict"
	"github.com/KaramelBytes/fairloan-cli/internal/schema"
)

// DefaultMaxUploadMB bounds request bodies when Options leaves it unset.
const DefaultMaxUploadMB = 32

// Options configures the handler.
type Options struct {
	CORSOrigins []string
	MaxUploadMB int
	// Engine holds the training defaults; form fields override them per request.
	Engine engine.Options
}

// Handler serves /health, /analyze and /predict.
type Handler struct {
	Store   *bundle.Store
	Predict *predict.Service
	opts    Options
	log     *slog.Logger
}

// NewHandler wires a handler around a bundle store.
func NewHandler(store *bundle.Store, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = DefaultMaxUploadMB
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.Engine.Logger == nil {
		opts.Engine.Logger = logger
	}
	return &Handler{
		Store:   store,
		Predict: predict.NewService(store, logger),
		opts:    opts,
		log:     logger.With("component", "server"),
	}
}

// Router returns the chi router with middleware and CORS installed.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Post("/analyze", h.Analyze)
	r.Post("/predict", h.PredictHandler)
}

// HealthCheck answers OK.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// Analyze trains on an uploaded CSV and returns the analysis result.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	form, err := h.readMultipart(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if form.data == nil {
		h.writeError(w, http.StatusBadRequest, errors.New("missing file field"))
		return
	}
	opt := h.opts.Engine
	if v := form.fields["bias_threshold"]; v != "" {
		f, err := cast.ToFloat64E(v)
		if err != nil || f <= 0 {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid bias_threshold: %s", v))
			return
		}
		opt.BiasThreshold = f
	}
	if v := form.fields["profile"]; v != "" {
		opt.Profile = v
	}
	if v := form.fields["sensitive"]; v != "" {
		opt.Sensitive = splitList(v)
	}
	modelType := form.fields["model_type"]
	if modelType == "" {
		modelType = string(engine.Logistic)
	}
	variant, err := bundle.ParseVariant(form.fields["variant"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	a, err := engine.TrainAndAnalyze(form.data, modelType, opt)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	if cast.ToBool(form.fields["save"]) {
		if _, err := h.Store.Save(a.Bundle, variant); err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, a.Result)
}

// PredictHandler scores a JSON record (or array of records) or an uploaded CSV.
func (h *Handler) PredictHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	modelType := q.Get("model_type")
	if modelType == "" {
		modelType = string(engine.Logistic)
	}
	biased := cast.ToBool(q.Get("biased"))

	var input any
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		form, err := h.readMultipart(w, r)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		if form.data == nil {
			h.writeError(w, http.StatusBadRequest, errors.New("missing file field"))
			return
		}
		input = form.data
	} else {
		var body any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBytes())).Decode(&body); err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
			return
		}
		in, err := records(body)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		input = in
	}

	out, err := h.Predict.Predict(input, modelType, biased)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// records accepts a JSON object or an array of objects.
func records(body any) (any, error) {
	switch v := body.(type) {
	case map[string]any:
		return v, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record %d is not an object", i)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, errors.New("body must be a JSON object or array of objects")
}

type multipartForm struct {
	data   *dataset.Dataset
	fields map[string]string
}

// readMultipart streams the body part by part so nothing touches disk. The
// file part is parsed as CSV as it is read.
func (h *Handler) readMultipart(w http.ResponseWriter, r *http.Request) (*multipartForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes())
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("read multipart: %w", err)
	}
	form := &multipartForm{fields: map[string]string{}}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart: %w", err)
		}
		name := part.FormName()
		if name == "file" {
			d, err := dataset.ReadCSV(part, h.opts.Engine.Dataset)
			if err != nil {
				return nil, err
			}
			d.Name = part.FileName()
			form.data = d
			continue
		}
		b, err := io.ReadAll(io.LimitReader(part, 4<<10))
		if err != nil {
			return nil, fmt.Errorf("read field %s: %w", name, err)
		}
		form.fields[name] = strings.TrimSpace(string(b))
	}
	return form, nil
}

func (h *Handler) maxBytes() int64 { return int64(h.opts.MaxUploadMB) << 20 }

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		mc *schema.MissingColumnError
		ma *predict.MissingAfterMappingError
		nf *bundle.NotFoundError
	)
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &mc), errors.As(err, &ma),
		errors.Is(err, engine.ErrUnknownModelType), errors.Is(err, engine.ErrUnknownAttribute),
		errors.Is(err, engine.ErrInsufficientData), errors.Is(err, engine.ErrInvalidThreshold),
		errors.Is(err, predict.ErrEmptyBatch), errors.Is(err, schema.ErrUnknownProfile):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "status", status, "err", err)
	} else {
		h.log.Warn("request rejected", "status", status, "err", err)
	}
	h.writeJSON(w, status, engine.NewErrorResult(err))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Serve runs the handler on addr until ctx is cancelled, then shuts down.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "component", "server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
