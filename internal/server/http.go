package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mvp-joe/smolex/internal/iface"
	"github.com/mvp-joe/smolex/internal/resolver"
)

const (
	// DefaultAddr matches the port the service has always listened on.
	DefaultAddr = "0.0.0.0:5003"

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

//go:embed openapi.yaml
var openAPISpec []byte

// Lookuper is the query surface the endpoints forward to.
type Lookuper interface {
	LookupInterface(ctx context.Context, classNames []string) (resolver.Result[*iface.InterfaceView], error)
	LookupCode(ctx context.Context, items []string) (resolver.Result[string], error)
}

// InterfaceItem is the wire form of a structured interface result.
type InterfaceItem struct {
	Name          string `json:"name"`
	QualifiedPath string `json:"qualified_path"`
	File          string `json:"file"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	Interface     string `json:"interface"`
}

func toInterfaceItem(v *iface.InterfaceView) InterfaceItem {
	return InterfaceItem{
		Name:          v.Name,
		QualifiedPath: v.QualifiedPath,
		File:          v.Location.FilePath,
		StartLine:     v.Location.StartLine,
		EndLine:       v.Location.EndLine,
		Interface:     v.Render(),
	}
}

type lookupInterfaceRequest struct {
	ClassNames *[]string `json:"class_names"`
}

type lookupCodeRequest struct {
	Items *[]string `json:"items"`
}

type dataResponse struct {
	Data []any `json:"data"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type handler struct {
	lookup Lookuper
	logger logrus.FieldLogger
}

// NewHandler returns the HTTP API:
//
//	POST /lookup_interface/  {"class_names": [...]}
//	POST /lookup_code/       {"items": [...]}
//	GET  /healthz
//	GET  /openapi.yaml
//	GET  /.well-known/ai-plugin.json
func NewHandler(lookup Lookuper, logger logrus.FieldLogger) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &handler{lookup: lookup, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /lookup_interface/", h.lookupInterface)
	mux.HandleFunc("POST /lookup_interface", h.lookupInterface)
	mux.HandleFunc("POST /lookup_code/", h.lookupCode)
	mux.HandleFunc("POST /lookup_code", h.lookupCode)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /openapi.yaml", h.openAPI)
	mux.HandleFunc("GET /.well-known/ai-plugin.json", h.pluginManifest)

	return withCORS(withRequestLog(mux, logger))
}

func (h *handler) lookupInterface(w http.ResponseWriter, r *http.Request) {
	var req lookupInterfaceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ClassNames == nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "class_names is required"})
		return
	}

	result, err := h.lookup.LookupInterface(r.Context(), *req.ClassNames)
	if err != nil {
		h.serverError(w, "lookup_interface", err)
		return
	}
	if result.Empty() {
		h.serverError(w, "lookup_interface", errors.New("empty result"))
		return
	}

	var data []any
	if result.Source == resolver.SourceSemantic {
		data = []any{result.Semantic}
	} else {
		for _, v := range result.Structured {
			data = append(data, toInterfaceItem(v))
		}
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: data})
}

func (h *handler) lookupCode(w http.ResponseWriter, r *http.Request) {
	var req lookupCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Items == nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "items is required"})
		return
	}

	result, err := h.lookup.LookupCode(r.Context(), *req.Items)
	if err != nil {
		h.serverError(w, "lookup_code", err)
		return
	}
	if result.Empty() {
		h.serverError(w, "lookup_code", errors.New("empty result"))
		return
	}

	var data []any
	if result.Source == resolver.SourceSemantic {
		data = []any{result.Semantic}
	} else {
		for _, source := range result.Structured {
			data = append(data, source)
		}
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: data})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) openAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/yaml")
	w.Write(openAPISpec)
}

func (h *handler) pluginManifest(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	writeJSON(w, http.StatusOK, newPluginManifest(fmt.Sprintf("%s://%s", scheme, r.Host)))
}

// serverError hides the cause from clients; it is only logged.
func (h *handler) serverError(w http.ResponseWriter, endpoint string, err error) {
	h.logger.WithError(err).WithField("endpoint", endpoint).Error("lookup failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Server error"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withRequestLog(next http.Handler, logger logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).Round(time.Microsecond),
		}).Debug("request")
	})
}

// withCORS allows any origin, so browser-hosted assistants can call the API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		if origin := r.Header.Get("Origin"); origin != "" {
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
			header.Add("Vary", "Origin")
		} else {
			header.Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				header.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// down gracefully. ready, when non-nil, receives the bound address.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger logrus.FieldLogger, ready chan<- string) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
		errCh <- srv.Serve(ln)
	}()
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP shutdown failed: %w", err)
		}
		<-errCh
		return nil
	}
}
