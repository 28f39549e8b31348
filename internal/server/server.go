package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-kreyol-tts/internal/bert"
	"github.com/example/go-kreyol-tts/internal/config"
	"github.com/example/go-kreyol-tts/internal/frontend"
	"github.com/example/go-kreyol-tts/internal/g2p"
	"github.com/example/go-kreyol-tts/internal/text"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Service is the front end surface the HTTP handler needs.
// *frontend.Frontend satisfies it.
type Service interface {
	G2P(text string, opts g2p.G2POptions) (g2p.Result, error)
	BertFeature(ctx context.Context, text string, word2ph []int) (*bert.Matrix, error)
	FeaturesLoaded() bool
}

var _ Service = (*frontend.Frontend)(nil)

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	padStartEnd    bool
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		workers:        2,
		requestTimeout: 60 * time.Second,
		padStartEnd:    true,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent g2p and bert calls.
// Zero disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithPadStartEnd sets the /g2p default when a request omits pad_start_end.
func WithPadStartEnd(pad bool) Option {
	return func(o *options) { o.padStartEnd = pad }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	svc  Service
	opts options
	sem  chan struct{} // semaphore for worker pool
	log  *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, /normalize,
// POST /g2p and POST /bert.
func NewHandler(svc Service, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		svc:  svc,
		opts: opts,
		log:  opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/normalize", h.handleNormalize)
	mux.HandleFunc("/g2p", h.handleG2P)
	mux.HandleFunc("/bert", h.handleBert)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  buildVersion(),
		"features": h.svc.FeaturesLoaded(),
	})
}

type textRequest struct {
	Text        string `json:"text"`
	PadStartEnd *bool  `json:"pad_start_end,omitempty"`
}

type g2pResponse struct {
	Text    string   `json:"text"`
	Phones  []string `json:"phones"`
	Tones   []int    `json:"tones"`
	Word2Ph []int    `json:"word2ph"`
}

type bertResponse struct {
	Shape   []int     `json:"shape"`
	Data    []float32 `json:"data"`
	Phones  []string  `json:"phones"`
	Word2Ph []int     `json:"word2ph"`
}

// decodeText reads and validates a JSON text request. It writes the error
// response itself and reports false when the request must stop.
func (h *handler) decodeText(w http.ResponseWriter, r *http.Request) (textRequest, bool) {
	var req textRequest

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return req, false
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}

	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text field is required")
		return req, false
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return req, false
	}

	return req, true
}

// prepare normalizes the request text; punctuation-only input is a 400.
func prepare(w http.ResponseWriter, raw string) (string, bool) {
	norm, err := text.Prepare(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return norm, true
}

// acquire takes a worker slot, honouring cancellation while waiting.
func (h *handler) acquire(w http.ResponseWriter, r *http.Request) (release func(), ok bool) {
	if h.sem == nil {
		return func() {}, true
	}

	select {
	case h.sem <- struct{}{}:
		return func() { <-h.sem }, true
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
		return nil, false
	}
}

func (h *handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeText(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text.Normalize(req.Text)})
}

func (h *handler) handleG2P(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeText(w, r)
	if !ok {
		return
	}

	norm, ok := prepare(w, req.Text)
	if !ok {
		return
	}

	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	opts := g2p.G2POptions{PadStartEnd: h.opts.padStartEnd}
	if req.PadStartEnd != nil {
		opts.PadStartEnd = *req.PadStartEnd
	}

	start := time.Now()
	res, err := h.svc.G2P(norm, opts)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		h.log.ErrorContext(r.Context(), "g2p failed",
			slog.Int("text_len", len(norm)),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "g2p complete",
		slog.Int("text_len", len(norm)),
		slog.Int("phones", len(res.Phones)),
		slog.Int64("duration_ms", durationMS),
	)

	writeJSON(w, http.StatusOK, g2pResponse{
		Text:    norm,
		Phones:  res.Phones,
		Tones:   res.Tones,
		Word2Ph: res.Word2Ph,
	})
}

func (h *handler) handleBert(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeText(w, r)
	if !ok {
		return
	}

	if !h.svc.FeaturesLoaded() {
		writeError(w, http.StatusServiceUnavailable, frontend.ErrFeaturesNotLoaded.Error())
		return
	}

	norm, ok := prepare(w, req.Text)
	if !ok {
		return
	}

	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()

	// The model sees [CLS] and [SEP], so the alignment is always padded.
	res, err := h.svc.G2P(norm, g2p.G2POptions{PadStartEnd: true})
	if err == nil {
		var feat *bert.Matrix
		feat, err = h.svc.BertFeature(ctx, norm, res.Word2Ph)
		if err == nil {
			h.log.InfoContext(r.Context(), "bert features complete",
				slog.Int("text_len", len(norm)),
				slog.Int("phones", len(res.Phones)),
				slog.Int("width", feat.Rows),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			writeJSON(w, http.StatusOK, bertResponse{
				Shape:   feat.Shape(),
				Data:    feat.Data,
				Phones:  res.Phones,
				Word2Ph: res.Word2Ph,
			})
			return
		}
	}

	durationMS := time.Since(start).Milliseconds()
	status := statusFor(err)
	if status == http.StatusGatewayTimeout {
		h.log.WarnContext(r.Context(), "bert features timed out",
			slog.Int("text_len", len(norm)),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, status, "feature extraction timed out")
		return
	}

	h.log.ErrorContext(r.Context(), "bert features failed",
		slog.Int("text_len", len(norm)),
		slog.Int64("duration_ms", durationMS),
		slog.String("error", err.Error()),
	)
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case errors.Is(err, bert.ErrTokenCountMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, frontend.ErrFeaturesNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server - wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	svc             Service
	opts            []Option
	shutdownTimeout time.Duration
}

// New returns a Server for svc. Handler options derived from cfg are applied
// first; opts override them.
func New(cfg config.Config, svc Service, opts ...Option) *Server {
	shutdown := cfg.Server.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}

	return &Server{
		cfg:             cfg,
		svc:             svc,
		opts:            opts,
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) handlerOptions() []Option {
	opts := []Option{
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithPadStartEnd(s.cfg.G2P.PadStartEnd),
	}
	if s.cfg.Server.RequestTimeout > 0 {
		opts = append(opts, WithRequestTimeout(s.cfg.Server.RequestTimeout))
	}
	return append(opts, s.opts...)
}

func (s *Server) Start(ctx context.Context) error {
	if s.svc == nil {
		return errors.New("server requires a front end service")
	}

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           NewHandler(s.svc, s.handlerOptions()...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
