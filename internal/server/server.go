// Package server is the development server of watch mode. It serves the
// intermediate tree with a live-reload client injected into every HTML page
// and pushes reload notifications over a websocket.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/middleware"
	"github.com/conneroisu/sitepipe/internal/validation"
)

// StageName is the name the server runs under in the task graph.
const StageName = "dev-server-start"

// Endpoints.
const (
	WebSocketPath = "/_sitepipe/ws"
	StatusPath    = "/_sitepipe/status"
	HealthPath    = "/_sitepipe/health"
)

const shutdownTimeout = 5 * time.Second

// Scope selects what the browser refreshes.
type Scope string

const (
	// ScopePage reloads the whole page.
	ScopePage Scope = "reload"
	// ScopeCSS re-fetches stylesheets without a page reload.
	ScopeCSS Scope = "css"
)

// Options configure the server.
type Options struct {
	Host string
	Port int
	// Root is the directory served, normally the intermediate tree.
	Root string
}

// Server is the development server. It implements graph.Stage.
type Server struct {
	opts   Options
	hub    *Hub
	status StatusSource
	logger logging.Logger

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

var _ graph.Stage = (*Server)(nil)

// New creates a server; status may be nil.
func New(opts Options, status StatusSource, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	s := &Server{opts: opts, status: status, logger: logger}
	s.hub = NewHub(s.checkOrigin, logger)
	return s
}

func (s *Server) Name() string { return StageName }

// Outputs is empty; the server only reads.
func (s *Server) Outputs() []graph.Output { return nil }

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub { return s.hub }

// Listen binds the configured address. Calling it before Run reports port
// conflicts before anything else starts.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewStageError(StageName, "cannot listen on "+addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the address browsers should open.
func (s *Server) URL() string {
	host, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Run serves until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv, ln := s.httpServer, s.listener
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info(ctx, "Development server started", "url", s.URL(), "root", s.opts.Root)

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.NewStageError(StageName, "server stopped", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown closes live-reload clients and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = s.hub.Shutdown(ctx)

	s.mu.Lock()
	srv := s.httpServer
	ln := s.listener
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return errors.NewInternalError(errors.ErrCodeInternal, "server shutdown", err)
		}
		return nil
	}
	if ln != nil {
		_ = ln.Close()
	}
	return nil
}

// Reload notifies connected browsers that binding finished rebuilding.
func (s *Server) Reload(ctx context.Context, scope Scope, binding string) error {
	clients := s.hub.GetConnectedClients()
	s.logger.Debug(ctx, "Reload", "scope", string(scope), "binding", binding, "clients", clients)
	return s.hub.BroadcastMessage(UpdateMessage{Type: scope, Binding: binding, Timestamp: time.Now()})
}

// Handler returns the HTTP handler with its middleware stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.hub.HandleWebSocket)
	mux.HandleFunc(ReloadScriptPath, handleReloadScript)
	mux.HandleFunc(StatusPath, s.handleStatus)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.Handle("/", s.fileHandler())

	return middleware.NewMiddlewareChain(
		middleware.Recovery(s.logger),
		middleware.Logging(s.logger),
		middleware.NoCache(),
	).Apply(mux)
}

// checkOrigin accepts pages served from this server or from localhost.
func (s *Server) checkOrigin(origin string) error {
	allowed := []string{"localhost", "127.0.0.1", "[::1]"}
	if s.opts.Host != "" {
		allowed = append(allowed, s.opts.Host)
	}
	if addr := s.Addr(); addr != "" {
		allowed = append(allowed, addr)
	}
	return validation.ValidateOrigin(origin, allowed)
}

func handleReloadScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = io.WriteString(w, reloadScript)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var page templ.Component
	if s.status != nil {
		page = statusPage(s.status.Results(), s.hub.GetConnectedClients())
	} else {
		page = statusPage(nil, s.hub.GetConnectedClients())
	}
	templ.Handler(page).ServeHTTP(w, r)
}

type health struct {
	Status   string          `json:"status"`
	Clients  int             `json:"clients"`
	Bindings []bindingHealth `json:"bindings"`
}

type bindingHealth struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Runs  int    `json:"runs"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{Status: "ok", Clients: s.hub.GetConnectedClients(), Bindings: []bindingHealth{}}
	if s.status != nil {
		for _, res := range s.status.Results() {
			b := bindingHealth{Name: res.Binding, OK: res.OK(), Runs: res.Runs}
			if !res.OK() {
				b.Error = res.Err.Error()
				h.Status = "degraded"
			}
			h.Bindings = append(h.Bindings, b)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

// fileHandler serves Root, injecting the reload client into HTML pages.
func (s *Server) fileHandler() http.Handler {
	dir := http.Dir(s.opts.Root)
	files := http.FileServer(dir)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/") {
			name = path.Join(name, "index.html")
		}
		if !strings.EqualFold(path.Ext(name), ".html") {
			files.ServeHTTP(w, r)
			return
		}

		f, err := dir.Open(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		doc, err := io.ReadAll(f)
		if err != nil {
			http.Error(w, fmt.Sprintf("read %s: %v", name, err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(InjectReloadScript(doc))
	})
}
