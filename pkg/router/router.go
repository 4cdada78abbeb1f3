package router

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// ANSI color codes for request logging.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

// Router is a small method-aware mux with wildcard path segments and colored
// request logging. Routes are matched in registration order, so more specific
// routes must be registered before their wildcard siblings.
type Router struct {
	routes []route
	mounts []mount
}

type route struct {
	method   string
	pattern  string
	segments []string
	handler  http.HandlerFunc
}

// mount attaches a foreign http.Handler under a path prefix (used for the
// swagger UI).
type mount struct {
	prefix  string
	handler http.Handler
}

func New() *Router {
	return &Router{}
}

func (r *Router) handle(method, pattern string, h http.HandlerFunc) {
	r.routes = append(r.routes, route{
		method:   method,
		pattern:  pattern,
		segments: strings.Split(strings.Trim(pattern, "/"), "/"),
		handler:  h,
	})
}

func (r *Router) GET(pattern string, h http.HandlerFunc)    { r.handle(http.MethodGet, pattern, h) }
func (r *Router) POST(pattern string, h http.HandlerFunc)   { r.handle(http.MethodPost, pattern, h) }
func (r *Router) PUT(pattern string, h http.HandlerFunc)    { r.handle(http.MethodPut, pattern, h) }
func (r *Router) DELETE(pattern string, h http.HandlerFunc) { r.handle(http.MethodDelete, pattern, h) }

// Mount serves every request under prefix with the given handler, bypassing
// route matching.
func (r *Router) Mount(prefix string, h http.Handler) {
	r.mounts = append(r.mounts, mount{prefix: prefix, handler: h})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	r.dispatch(lrw, req)

	log.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
		colorCyan, start.Format("2006-01-02 15:04:05"), colorReset,
		methodColor(req.Method), req.Method, colorReset,
		req.URL.Path,
		statusColor(lrw.statusCode), lrw.statusCode, colorReset,
		colorBlue, time.Since(start), colorReset,
	)
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	for _, m := range r.mounts {
		if strings.HasPrefix(req.URL.Path, m.prefix) {
			m.handler.ServeHTTP(w, req)
			return
		}
	}

	segments := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	pathMatched := false
	for _, rt := range r.routes {
		if !matchSegments(segments, rt.segments) {
			continue
		}
		if rt.method != req.Method {
			pathMatched = true
			continue
		}
		rt.handler(w, req)
		return
	}

	if pathMatched {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

// matchSegments matches a request path against a pattern. "*" matches exactly
// one segment; a trailing "*" in a one-segment-longer pattern is not treated
// as a catch-all.
func matchSegments(path, pattern []string) bool {
	if len(path) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p == "*" {
			continue
		}
		if path[i] != p {
			return false
		}
	}
	return true
}

// Start blocks serving HTTP on addr.
func (r *Router) Start(addr string) {
	log.Printf("🚀 Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset)
	log.Fatal(http.ListenAndServe(addr, r))
}

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
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodPut, http.MethodPatch:
		return colorYellow
	case http.MethodDelete:
		return colorRed
	default:
		return colorReset
	}
}
