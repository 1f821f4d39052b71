package xplorer

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Handler answers a single Request with a single Response. A Handler must
// never block past the main-thread trampoline's own timeout and must never
// itself be trusted not to panic; Router.Handle recovers from that for it.
type Handler func(*Request) *Response

// Parameter documents one query parameter a route accepts. Routes carry
// these purely for discovery (routerInfo); the router never validates
// parameters itself, since that is the handler's concern.
type Parameter struct {
	Name        string
	Description string
	Required    bool
	Default     string
	Examples    []string
}

// routeEntry is one registered endpoint of a Router.
type routeEntry struct {
	path             string
	description      string
	parameters       []Parameter
	runsOnMainThread bool
	handler          Handler
}

// Router is a hierarchical request dispatcher. The zero value is not usable;
// construct one with NewRouter. The route table is built once at startup and
// read-only afterwards: registration is not safe to interleave with
// concurrent Handle calls.
type Router struct {
	description string
	basePath    string

	mu       sync.RWMutex
	routes   map[string]*routeEntry
	children map[string]*Router

	notFound  Handler
	main      *MainThreadDispatcher
	debugMode bool
	timeout   time.Duration
}

// NewRouter returns an empty Router with description as its self-reported
// discovery text and the default not-found handler.
func NewRouter(description string) *Router {
	return &Router{
		description: description,
		routes:      map[string]*routeEntry{},
		children:    map[string]*Router{},
		notFound:    func(*Request) *Response { return NotFoundResponse() },
		timeout:     mainThreadTimeout,
	}
}

// WithHandlerTimeout overrides the main-thread trampoline deadline,
// propagating to every already-mounted child. Tests shrink it; everything
// else leaves the default alone.
func (rt *Router) WithHandlerTimeout(d time.Duration) *Router {
	if d <= 0 {
		d = mainThreadTimeout
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.timeout = d
	for _, c := range rt.children {
		c.WithHandlerTimeout(d)
	}
	return rt
}

// WithMainThreadDispatcher attaches the MainThreadDispatcher used to
// trampoline routes registered with runsOnMainThread=true. Without one
// attached, such routes run inline (there being no UI context to hop to),
// which is the correct behavior for routers under test.
func (rt *Router) WithMainThreadDispatcher(d *MainThreadDispatcher) *Router {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.main = d
	for _, c := range rt.children {
		c.WithMainThreadDispatcher(d)
	}
	return rt
}

// WithDebugMode sets whether a recovered handler panic's stack trace is
// included in the InternalError response body. It propagates to every
// already-mounted child, the same way WithMainThreadDispatcher does: a
// server either runs in debug mode everywhere or nowhere.
func (rt *Router) WithDebugMode(debug bool) *Router {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.debugMode = debug
	for _, c := range rt.children {
		c.WithDebugMode(debug)
	}
	return rt
}

// normalizePath strips a single trailing slash, except for the root path
// itself, and is used identically for registered paths and mount prefixes.
func normalizePath(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

// Register adds path to rt, overwriting any existing entry at that exact
// path. It panics on an empty or malformed path: a bad registration is a
// programming error, not a runtime condition.
func (rt *Router) Register(path, description string, parameters []Parameter, runsOnMainThread bool, handler Handler) {
	if path == "" || path[0] != '/' {
		panic("xplorer: route path must be non-empty and start with /")
	}
	if handler == nil {
		panic("xplorer: route handler must not be nil")
	}

	path = normalizePath(path)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.routes[path] = &routeEntry{
		path:             path,
		description:      description,
		parameters:       parameters,
		runsOnMainThread: runsOnMainThread,
		handler:          handler,
	}
}

// Mount attaches child under prefix. The child's basePath becomes the
// normalized prefix, and the child inherits rt's MainThreadDispatcher if one
// is already attached.
func (rt *Router) Mount(prefix string, child *Router) {
	if prefix == "" || prefix[0] != '/' {
		panic("xplorer: mount prefix must be non-empty and start with /")
	}

	prefix = normalizePath(prefix)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, exists := rt.routes[prefix]; exists {
		panic(fmt.Sprintf("xplorer: prefix %q is already used by a local route", prefix))
	}
	child.basePath = prefix
	if rt.main != nil {
		child.WithMainThreadDispatcher(rt.main)
	}
	if rt.debugMode {
		child.WithDebugMode(true)
	}
	if rt.timeout != mainThreadTimeout {
		child.WithHandlerTimeout(rt.timeout)
	}
	rt.children[prefix] = child
}

// SetNotFoundHandler overrides rt's fallback handler.
func (rt *Router) SetNotFoundHandler(h Handler) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.notFound = h
}

// TotalEndpointCount is the number of locally registered routes plus every
// mounted child's own TotalEndpointCount, computed fresh on each call (the
// route table is small and read-mostly, so no caching is warranted).
func (rt *Router) TotalEndpointCount() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.totalEndpointCountLocked()
}

// totalEndpointCountLocked assumes rt.mu is already held (for read) by the
// caller and recurses into children without re-acquiring it on rt itself.
func (rt *Router) totalEndpointCountLocked() int {
	n := len(rt.routes)
	for _, c := range rt.children {
		n += c.TotalEndpointCount()
	}
	return n
}

// Handle dispatches req through rt's sub-router/exact-match/trailing-slash
// algorithm, recovering any handler panic into an InternalError response so
// a programming error in a handler never tears down a transport.
func (rt *Router) Handle(req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			message := "Internal error"
			if rt.debugMode {
				message = fmt.Sprintf("Internal error: %v\n%s", r, debug.Stack())
			}
			resp = ErrorResponse(StatusInternalError, message)
		}
	}()
	return rt.dispatch(req)
}

// dispatch runs the four dispatch steps without the panic recovery wrapper,
// so recursing into a mounted child doesn't double-wrap recover().
func (rt *Router) dispatch(req *Request) *Response {
	rt.mu.RLock()

	// Step 1: sub-router match, longest mounted prefix wins so that
	// mounting order never matters.
	var (
		bestPrefix string
		bestChild  *Router
	)
	for prefix, child := range rt.children {
		if req.Path == prefix || strings.HasPrefix(req.Path, prefix+"/") {
			if len(prefix) > len(bestPrefix) {
				bestPrefix, bestChild = prefix, child
			}
		}
	}
	if bestChild != nil {
		rt.mu.RUnlock()
		remainder := strings.TrimPrefix(req.Path, bestPrefix)
		if remainder == "" {
			remainder = "/"
		}
		return bestChild.dispatch(req.withPath(remainder))
	}

	// Step 2: exact local match.
	if entry, ok := rt.routes[req.Path]; ok {
		rt.mu.RUnlock()
		return rt.invoke(entry, req)
	}

	// Step 3: trailing-slash normalization.
	if req.Path != "/" && strings.HasSuffix(req.Path, "/") {
		stripped := strings.TrimSuffix(req.Path, "/")
		if entry, ok := rt.routes[stripped]; ok {
			rt.mu.RUnlock()
			return rt.invoke(entry, req.withPath(stripped))
		}
	}

	notFound := rt.notFound
	rt.mu.RUnlock()

	// Step 4: fallback.
	return notFound(req)
}

// mainThreadTimeout bounds how long a serving worker waits for a
// trampolined handler before giving up on it.
const mainThreadTimeout = 30 * time.Second

// invoke runs entry's handler, trampolining to the main thread first if the
// route demands it and the calling goroutine is not already there.
func (rt *Router) invoke(entry *routeEntry, req *Request) *Response {
	if !entry.runsOnMainThread || (rt.main != nil && rt.main.IsMainThread()) {
		return entry.handler(req)
	}

	if rt.main == nil {
		// No UI context configured at all: run inline. This keeps
		// routers usable in tests and tools with no dispatcher.
		return entry.handler(req)
	}

	ctx, cancel := context.WithTimeout(context.Background(), rt.timeout)
	defer cancel()

	result, err := rt.main.RunSync(ctx, func() (resp *Response) {
		// The handler runs on the run loop goroutine, outside Handle's
		// recover, so a panic is turned into a response here.
		defer func() {
			if r := recover(); r != nil {
				message := "Internal error"
				if rt.debugMode {
					message = fmt.Sprintf("Internal error: %v\n%s", r, debug.Stack())
				}
				resp = ErrorResponse(StatusInternalError, message)
			}
		}()
		return entry.handler(req)
	})
	if err != nil {
		return ErrorResponse(StatusInternalError, "Request handler timed out")
	}
	return result
}

// ChildSummary is the shallow description of a mounted child router used
// when RouterInfo is asked for a summary rather than a deep expansion.
type ChildSummary struct {
	Path          string `json:"path"`
	Description   string `json:"description"`
	EndpointCount int    `json:"endpointCount"`
}

// EndpointInfo describes one registered route for discovery purposes.
type EndpointInfo struct {
	Path        string      `json:"path"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters,omitempty"`
}

// RouterInfo is the discoverable shape of a Router returned by its own "/"
// endpoint.
type RouterInfo struct {
	Path          string         `json:"path"`
	Description   string         `json:"description"`
	EndpointCount int            `json:"endpointCount"`
	Endpoints     []EndpointInfo `json:"endpoints"`
	Routers       []interface{}  `json:"routers"`
}

// RouterInfo builds rt's discoverable description. If deep is false, mounted
// children are summarized as {path, description, endpointCount}; if deep is
// true, each child is recursively expanded into its own RouterInfo.
func (rt *Router) RouterInfo(deep bool) *RouterInfo {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	info := &RouterInfo{
		Path:          rt.basePath,
		Description:   rt.description,
		EndpointCount: rt.totalEndpointCountLocked(),
	}
	if info.Path == "" {
		info.Path = "/"
	}

	for _, entry := range rt.routes {
		info.Endpoints = append(info.Endpoints, EndpointInfo{
			Path:        entry.path,
			Description: entry.description,
			Parameters:  entry.parameters,
		})
	}

	for prefix, child := range rt.children {
		if deep {
			info.Routers = append(info.Routers, child.RouterInfo(true))
		} else {
			info.Routers = append(info.Routers, ChildSummary{
				Path:          prefix,
				Description:   child.description,
				EndpointCount: child.TotalEndpointCount(),
			})
		}
	}

	return info
}
