// Package server exposes a composition root over HTTP.
//
// Children are a REST resource under /children; mutations go through the
// root's control loop, so the root must be running (see [Server.ListenAndServe]
// or [composite.Root.Run]). A websocket hub under /channel/{topic} lets
// clients push JSON payloads to every child whose realtime channel points at
// that topic.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/automation/pkg/composite"
	"github.com/matzehuels/automation/pkg/dom"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/events"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/snapshot"
)

const maxBody = 1 << 20

// Options configures a Server.
type Options struct {
	Logger *log.Logger

	// Protocols are the websocket sub-protocols the hub accepts.
	Protocols []string

	// Title of the page served at /.
	Title string

	// Snapshots, when set, receives the children under SnapshotID on
	// POST /snapshot and on shutdown.
	Snapshots   snapshot.Store
	SnapshotID  string
	SnapshotTTL time.Duration
}

// Server serves one composition root.
type Server struct {
	root   *composite.Root
	target *dom.Element
	hub    *Hub
	logger *log.Logger
	title  string
	router chi.Router

	snapshots   snapshot.Store
	snapshotID  string
	snapshotTTL time.Duration
}

// New creates a server for root whose children are mounted under target.
func New(root *composite.Root, target *dom.Element, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	protocols := opts.Protocols
	if len(protocols) == 0 {
		protocols = []string{composite.DefaultChannelProtocol}
	}
	title := opts.Title
	if title == "" {
		title = "automation"
	}
	s := &Server{
		root:   root,
		target: target,
		hub:    NewHub(logger.With("component", "hub"), protocols...),
		logger: logger,
		title:  title,
	}
	if opts.Snapshots != nil && opts.SnapshotID != "" {
		s.snapshots = opts.Snapshots
		s.snapshotID = opts.SnapshotID
		s.snapshotTTL = opts.SnapshotTTL
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/", s.handlePage)
	r.Get("/healthz", s.handleHealth)
	r.Post("/refresh", s.handleRefresh)
	r.Route("/snapshot", func(r chi.Router) {
		r.Get("/", s.handleGetSnapshot)
		r.Post("/", s.handleSaveSnapshot)
	})

	r.Route("/children", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Route("/{cid}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Patch("/", s.handlePatch)
			r.Delete("/", s.handleDelete)
		})
	})

	r.Route("/channel/{topic}", func(r chi.Router) {
		r.Get("/", s.handleSubscribe)
		r.Post("/", s.handlePublish)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// ListenAndServe runs the root's control loop and serves on addr until ctx
// is cancelled, then shuts down within shutdownTimeout. The loop outlives the
// HTTP server so in-flight requests still reach the control thread.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The loop must own the root before the first request can call Do.
	loopErr := s.root.Start(context.Background())
	stopLoop := func() error {
		err := s.root.Do(context.Background(), s.root.Close)
		<-loopErr
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		s.hub.Close()
		_ = stopLoop()
		return errors.Wrap(errors.ErrCodeNetwork, err, "serve %s", addr)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if s.snapshots != nil {
		if n, serr := s.SaveSnapshot(shutdownCtx); serr != nil {
			s.logger.Error("save snapshot", "id", s.snapshotID, "err", serr)
		} else {
			s.logger.Info("saved snapshot", "id", s.snapshotID, "children", n)
		}
	}
	if lerr := stopLoop(); err == nil {
		err = lerr
	}
	return err
}

// SaveSnapshot stores the current children and returns how many were saved.
// It fails with UNSUPPORTED when the server has no snapshot store.
func (s *Server) SaveSnapshot(ctx context.Context) (int, error) {
	if s.snapshots == nil {
		return 0, errors.New(errors.ErrCodeUnsupported, "snapshots are disabled")
	}
	snap, err := snapshot.Capture(ctx, s.root, s.snapshotID, s.snapshotTTL)
	if err != nil {
		return 0, err
	}
	if err := s.snapshots.Set(ctx, snap); err != nil {
		return 0, err
	}
	return len(snap.Children), nil
}

// =============================================================================
// Handlers
// =============================================================================

type childView struct {
	CID        int              `json:"cid"`
	State      string           `json:"state"`
	Attributes model.Attributes `json:"attributes"`
	HTML       string           `json:"html"`
}

// view must run on the control thread.
func (s *Server) view(cid int) (childView, bool) {
	m, ok := s.root.Model(cid)
	if !ok {
		return childView{}, false
	}
	el, _ := s.root.Container().Element(cid)
	state, _ := s.root.State(cid)
	return childView{CID: cid, State: state.String(), Attributes: m.Attributes(), HTML: el.HTML()}, true
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var body string
	err := s.root.Do(r.Context(), func() error {
		body = s.target.HTML()
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>%s</body></html>\n", html.EscapeString(s.title), body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var n int
	_ = s.root.Do(r.Context(), func() error {
		n = s.root.Len()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"children": n,
		"topics":   s.hub.Topics(),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var out []childView
	err := s.root.Do(r.Context(), func() error {
		cids := s.root.Container().CIDs()
		out = make([]childView, 0, len(cids))
		for _, cid := range cids {
			if v, ok := s.view(cid); ok {
				out = append(out, v)
			}
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	attrs, err := decodeObject(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var v childView
	err = s.root.Do(r.Context(), func() error {
		m, err := s.root.Add(attrs)
		if err != nil {
			return err
		}
		cid, _ := m.CID()
		v, _ = s.view(cid)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/children/%d", v.CID))
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	cid, err := errors.ParseCID(chi.URLParam(r, "cid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var v childView
	err = s.root.Do(r.Context(), func() error {
		var ok bool
		if v, ok = s.view(cid); !ok {
			return errors.New(errors.ErrCodeNotFound, "no child %d", cid)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handlePatch merges the body onto the child's model; the change
// notification composites it before the response is written.
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	cid, err := errors.ParseCID(chi.URLParam(r, "cid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	attrs, err := decodeObject(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var v childView
	err = s.root.Do(r.Context(), func() error {
		m, ok := s.root.Model(cid)
		if !ok {
			return errors.New(errors.ErrCodeNotFound, "no child %d", cid)
		}
		if err := m.SetAll(attrs); err != nil {
			return err
		}
		v, _ = s.view(cid)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	cid, err := errors.ParseCID(chi.URLParam(r, "cid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	err = s.root.Do(r.Context(), func() error {
		if !s.root.Remove(cid) {
			return errors.New(errors.ErrCodeNotFound, "no child %d", cid)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var n int
	err := s.root.Do(r.Context(), func() error {
		n = s.root.Events().Trigger(events.ForceUpdateAll)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"handlers": n})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		s.writeError(w, errors.New(errors.ErrCodeUnsupported, "snapshots are disabled"))
		return
	}
	snap, err := s.snapshots.Get(r.Context(), s.snapshotID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if snap == nil {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "no snapshot %q", s.snapshotID))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	n, err := s.SaveSnapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": s.snapshotID, "children": n})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	if err := errors.ValidateTopic(topic); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.hub.Serve(w, r, topic); err != nil {
		s.logger.Debug("subscribe failed", "topic", topic, "err", err)
	}
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	if err := errors.ValidateTopic(topic); err != nil {
		s.writeError(w, err)
		return
	}
	attrs, err := decodeObject(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	msg, err := json.Marshal(attrs)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "encode payload"))
		return
	}
	n := s.hub.Publish(topic, msg)
	s.logger.Debug("published", "topic", topic, "delivered", n)
	writeJSON(w, http.StatusAccepted, map[string]any{"topic": topic, "delivered": n})
}

// =============================================================================
// Helpers
// =============================================================================

// decodeObject reads one JSON object with validated keys.
func decodeObject(body io.Reader) (model.Attributes, error) {
	var attrs model.Attributes
	dec := json.NewDecoder(io.LimitReader(body, maxBody))
	if err := dec.Decode(&attrs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode JSON object")
	}
	if attrs == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "expected a JSON object")
	}
	for k := range attrs {
		if err := errors.ValidateAttributeKey(k); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound, errors.ErrCodeUnknownChild, errors.ErrCodeUnknownKey:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidTopic, errors.ErrCodeReadOnly,
		errors.ErrCodeMalformedPayload, errors.ErrCodeTemplate, errors.ErrCodeInvalidMarkup:
		return http.StatusBadRequest
	case errors.ErrCodeDuplicateKey:
		return http.StatusConflict
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": errors.UserMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"dur", time.Since(start).Round(time.Microsecond),
				"id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
