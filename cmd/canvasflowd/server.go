package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/handler"
	"github.com/canvasflow/canvasflow-go/runtime"
	"github.com/canvasflow/canvasflow-go/ssr"
)

// serve runs the HTTP API until ctx is cancelled, then shuts the
// server down gracefully.
func serve(ctx context.Context, addr string, registry *runtime.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/apps", handleApps(registry))
	mux.HandleFunc("/ssr/classify", handleClassify(registry))
	mux.HandleFunc("/ssr/render", handleRender(registry))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleApps(registry *runtime.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type appInfo struct {
			ID    string `json:"id"`
			Pages int    `json:"pages"`
		}
		apps := []appInfo{}
		for _, id := range registry.Applications() {
			apps = append(apps, appInfo{ID: id, Pages: len(registry.Pages(id))})
		}
		writeJSON(w, http.StatusOK, apps)
	}
}

// handleClassify reports whether a component's handler may run on the
// server without executing it.
func handleClassify(registry *runtime.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comp, code, err := resolveHandler(registry, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		report := ssr.ClassifyHandler(code)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"component":      comp.Name,
			"classification": report.Classification,
			"sideEffectApis": report.SideEffectAPIs,
			"reason":         report.Reason,
		})
	}
}

// handleRender executes a component's handler server-side and responds
// with the hydration payload the client replays on mount.
func handleRender(registry *runtime.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
			return
		}
		comp, code, err := resolveHandler(registry, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		executor, err := ssr.NewExecutor(registry, handler.NewCompiler())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if _, _, err := executor.Execute(comp, code); err != nil {
			if errors.Is(err, ssr.ErrClientOnly) {
				writeError(w, http.StatusUnprocessableEntity, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		payload, err := executor.BuildPayload().Marshal()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	}
}

// resolveHandler finds the component named by the request and the
// handler code to run: either an event handler registered on the
// component or inline code from the "code" parameter.
func resolveHandler(registry *runtime.Context, r *http.Request) (*canvasflow.Component, string, error) {
	query := r.URL.Query()
	appID := query.Get("app")
	name := query.Get("component")
	if appID == "" || name == "" {
		return nil, "", errors.New("app and component query parameters are required")
	}

	comp, ok := registry.ComponentByName(appID, name)
	if !ok {
		return nil, "", fmt.Errorf("component %q not found in application %q", name, appID)
	}

	if code := query.Get("code"); code != "" {
		return comp, code, nil
	}
	event := query.Get("event")
	if event == "" {
		return nil, "", errors.New("either event or code query parameter is required")
	}
	code, ok := comp.Event[event]
	if !ok {
		return nil, "", fmt.Errorf("component %q has no handler for event %q", name, event)
	}
	return comp, code, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
