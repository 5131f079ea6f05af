package router

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Router is a minimal method-aware mux with wildcard segments and a
// colored request log. Sub-handlers (like the swagger UI) can be mounted
// under a prefix.
type Router struct {
	mux     *http.ServeMux
	routes  map[string]HandlerFunc // key = METHOD:PATH
	paths   map[string]bool        // track registered paths
	mounted map[string]http.Handler
}

func New() *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		routes:  make(map[string]HandlerFunc),
		paths:   make(map[string]bool),
		mounted: make(map[string]http.Handler),
	}

	// Catch-all handler for unknown paths
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		r.dispatch(lrw, req)

		duration := time.Since(start)
		color := statusColor(lrw.statusCode)

		log.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
			colorCyan, start.Format("2006-01-02 15:04:05"), colorReset,
			methodColor(req.Method), req.Method, colorReset,
			req.URL.Path,
			color, lrw.statusCode, colorReset,
			colorBlue, duration, colorReset,
		)
	})

	return r
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	// Mounted prefixes first (swagger UI serves a file tree)
	for prefix, h := range r.mounted {
		if strings.HasPrefix(req.URL.Path, prefix) {
			h.ServeHTTP(w, req)
			return
		}
	}

	key := req.Method + ":" + req.URL.Path
	if h, ok := r.routes[key]; ok {
		h(w, req)
		return
	}

	// Try wildcard routes
	for routePath := range r.paths {
		if !strings.Contains(routePath, "/*") {
			continue
		}
		if matchWildcardRoute(req.URL.Path, routePath) {
			if h, ok := r.routes[req.Method+":"+routePath]; ok {
				h(w, req)
				return
			}
		}
	}

	if r.paths[req.URL.Path] {
		// Path exists but method not allowed
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

// matchWildcardRoute matches a request path against a route with one or
// more "*" segments; a "*" matches exactly one path segment.
func matchWildcardRoute(reqPath, routePath string) bool {
	reqParts := strings.Split(strings.Trim(reqPath, "/"), "/")
	routeParts := strings.Split(strings.Trim(routePath, "/"), "/")

	if len(reqParts) != len(routeParts) {
		return false
	}
	for i, part := range routeParts {
		if part == "*" {
			continue
		}
		if part != reqParts[i] {
			return false
		}
	}
	return true
}

func (r *Router) handle(method, path string, h HandlerFunc) {
	r.routes[method+":"+path] = h
	r.paths[path] = true
}

func (r *Router) GET(path string, h HandlerFunc)    { r.handle(http.MethodGet, path, h) }
func (r *Router) POST(path string, h HandlerFunc)   { r.handle(http.MethodPost, path, h) }
func (r *Router) PATCH(path string, h HandlerFunc)  { r.handle(http.MethodPatch, path, h) }
func (r *Router) DELETE(path string, h HandlerFunc) { r.handle(http.MethodDelete, path, h) }

// Mount attaches an http.Handler under a path prefix
func (r *Router) Mount(prefix string, h http.Handler) {
	r.mounted[prefix] = h
}

// Start runs the HTTP server
func (r *Router) Start(addr string) error {
	log.Printf("%s🌐 Listening on %s%s", colorGreen, addr, colorReset)
	return http.ListenAndServe(addr, r.mux)
}

// --- logging response writer ---

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return colorRed
	case code >= 400:
		return colorYellow
	default:
		return colorGreen
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodDelete:
		return colorRed
	default:
		return colorYellow
	}
}
