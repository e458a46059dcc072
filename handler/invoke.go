package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/canvasflow/canvasflow-go/vars"
)

// backendFunction is one entry of the backend-defined function catalog.
type backendFunction struct {
	Name   string
	URL    string
	Method string
}

// loadCatalog fetches and caches the function catalog on first use. The
// raw catalog JSON is also stored in the functionsCache variable so the
// editor can list available functions without an extra fetch.
func (e *Executor) loadCatalog() (map[string]backendFunction, error) {
	e.catalogMu.Lock()
	defer e.catalogMu.Unlock()
	if e.catalog != nil {
		return e.catalog, nil
	}
	if e.functionsURL == "" {
		return nil, fmt.Errorf("no functions endpoint configured")
	}

	resp, err := e.client.Get(e.functionsURL)
	if err != nil {
		return nil, fmt.Errorf("fetching function catalog: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading function catalog: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("function catalog returned %d", resp.StatusCode)
	}

	catalog := make(map[string]backendFunction)
	for _, fn := range gjson.ParseBytes(body).Array() {
		entry := backendFunction{
			Name:   fn.Get("name").String(),
			URL:    fn.Get("url").String(),
			Method: fn.Get("method").String(),
		}
		if entry.Method == "" {
			entry.Method = http.MethodPost
		}
		if entry.Name != "" {
			catalog[entry.Name] = entry
		}
	}

	e.catalog = catalog
	e.ctx.Store().Set(vars.GlobalScope, "functionsCache", string(body))
	return catalog, nil
}

// invokeFunction looks a backend function up by display name, invokes
// it, and returns parsed JSON or raw text depending on the response
// content type. Failures are logged to the editor console and resolve
// to nil rather than throwing: a backend lookup failure must not crash
// the calling handler.
func (e *Executor) invokeFunction(name string, payload interface{}) interface{} {
	catalog, err := e.loadCatalog()
	if err != nil {
		e.console.Error(e.ctx.CurrentName(), "InvokeFunction:", err.Error())
		return nil
	}
	fn, ok := catalog[name]
	if !ok {
		e.console.Error(e.ctx.CurrentName(), "InvokeFunction: unknown function", name)
		return nil
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			e.console.Error(e.ctx.CurrentName(), "InvokeFunction: encoding payload:", err.Error())
			return nil
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(fn.Method, fn.URL, body)
	if err != nil {
		e.console.Error(e.ctx.CurrentName(), "InvokeFunction:", err.Error())
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.console.Error(e.ctx.CurrentName(), "InvokeFunction:", err.Error())
		return nil
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		e.console.Error(e.ctx.CurrentName(), "InvokeFunction: reading response:", err.Error())
		return nil
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var parsed interface{}
		if err := json.Unmarshal(data, &parsed); err != nil {
			e.console.Error(e.ctx.CurrentName(), "InvokeFunction: decoding response:", err.Error())
			return nil
		}
		return parsed
	}
	return string(data)
}
