package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"overlayd/internal/analyzer"
	"overlayd/internal/completion"
	"overlayd/internal/overlay"
	"overlayd/internal/window"
	"overlayd/pkg/types"
)

// Service defines the methods required by the HTTP API layer. *overlay.Overlay
// implements it.
type Service interface {
	Status() types.StatusResponse
	Ready() bool
	RequestModelDownload() (string, error)
	RequestModelLoad() (string, error)
	RequestModelUnload() (string, error)
	EnableMonitoring()
	DisableMonitoring()
	Describe(text string, wc window.Context) (analyzer.Context, string)
	RequestCompletion(text string, wc window.Context) (uint64, error)
	SubscribeResults() (<-chan completion.Result, func())
	SubscribeStatus() (<-chan overlay.StatusChange, func())
}

// NewMux builds the router serving svc.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods: orDefault(corsAllowedMethods, []string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Content-Type", "X-Log-Level", "X-Request-Id"}),
			MaxAge:         300,
		}))
	}

	// JSON endpoints are compressed; NDJSON streams are not.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "application/json"))

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Status())
		})

		r.Post("/model/{op}", func(w http.ResponseWriter, r *http.Request) {
			var op func() (string, error)
			switch chi.URLParam(r, "op") {
			case "download":
				op = svc.RequestModelDownload
			case "load":
				op = svc.RequestModelLoad
			case "unload":
				op = svc.RequestModelUnload
			default:
				writeJSONError(w, http.StatusNotFound, "unknown model operation")
				return
			}
			id, err := op()
			if err != nil {
				writeJSONError(w, statusFor(err), err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, types.OpResponse{OpID: id})
		})

		r.Post("/monitor/{op}", func(w http.ResponseWriter, r *http.Request) {
			switch chi.URLParam(r, "op") {
			case "enable":
				svc.EnableMonitoring()
			case "disable":
				svc.DisableMonitoring()
			default:
				writeJSONError(w, http.StatusNotFound, "unknown monitor operation")
				return
			}
			writeJSON(w, http.StatusOK, svc.Status().Monitor)
		})

		r.Post("/completions", func(w http.ResponseWriter, r *http.Request) {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
				writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			var req types.CompletionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			wc := windowContext(req)
			id, err := svc.RequestCompletion(req.Text, wc)
			if err != nil {
				writeJSONError(w, statusFor(err), err.Error())
				return
			}
			_, label := svc.Describe(req.Text, wc)
			writeJSON(w, http.StatusAccepted, types.CompletionAccepted{RequestID: id, Label: label})
		})
	})

	r.Get("/completions/stream", func(w http.ResponseWriter, r *http.Request) {
		ch, cancel := svc.SubscribeResults()
		defer cancel()
		streamNDJSON(w, r, ch, func(res completion.Result) any { return overlay.ToCompletionResult(res) })
	})

	r.Get("/events/stream", func(w http.ResponseWriter, r *http.Request) {
		ch, cancel := svc.SubscribeStatus()
		defer cancel()
		streamNDJSON(w, r, ch, func(c overlay.StatusChange) any { return overlay.ToStatusEvent(c) })
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("model not ready"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// windowContext builds the window context of a manual completion request. An
// explicit extension wins over one inferred from the title.
func windowContext(req types.CompletionRequest) window.Context {
	wc := window.Context{
		AppName:       window.NormalizeApp(req.AppName),
		Title:         req.WindowTitle,
		FileExtension: strings.ToLower(strings.TrimSpace(req.FileExtension)),
	}
	if wc.FileExtension != "" && !strings.HasPrefix(wc.FileExtension, ".") {
		wc.FileExtension = "." + wc.FileExtension
	}
	if wc.FileExtension == "" {
		wc.FileExtension = window.InferExtension(req.WindowTitle)
	}
	return wc
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
