package xplorer

import "reflect"

// ViewNode is the recursive shape of a view-hierarchy snapshot. What a
// "view" actually is belongs to the embedding application; this bundled
// endpoint only defines the tree shape and the address-resolution glue
// around it.
type ViewNode struct {
	Address   string     `json:"address"`
	ClassName string     `json:"className"`
	Children  []ViewNode `json:"children,omitempty"`
}

// ViewProvider is supplied by the embedding application: Root returns the
// current root of whatever live UI tree this process has, and ChildrenOf
// returns the live children of a node previously handed out by Root or a
// prior ChildrenOf call. Both are only ever called from the main thread:
// the HierarchyEndpoint always invokes them through its
// MainThreadDispatcher.
type ViewProvider interface {
	Root() interface{}
	ChildrenOf(node interface{}) []interface{}
	ClassNameOf(node interface{}) string
}

// HierarchyEndpoint is the bundled view-hierarchy introspection endpoint.
// It registers every node it walks into an AddressRegistry so a later
// request (e.g. a "highlight this view" RPC not modeled by this core) can
// resolve the address back to the live object.
type HierarchyEndpoint struct {
	provider ViewProvider
	registry *AddressRegistry
	main     *MainThreadDispatcher
}

// NewHierarchyEndpoint returns a HierarchyEndpoint backed by provider,
// registering visited nodes into registry and trampolining tree walks
// through main.
func NewHierarchyEndpoint(provider ViewProvider, registry *AddressRegistry, main *MainThreadDispatcher) *HierarchyEndpoint {
	return &HierarchyEndpoint{provider: provider, registry: registry, main: main}
}

// Router builds the mountable sub-router: "/" is discovery; "/views" walks
// the tree from the root down to maxDepth (unbounded if absent or not a
// non-negative integer; 0 returns the root alone).
func (h *HierarchyEndpoint) Router() *Router {
	rt := NewRouter("live UI hierarchy introspection")
	registerIndexHandlers(rt, "live UI hierarchy introspection")

	rt.Register("/views", "returns the current view hierarchy", []Parameter{
		{Name: "maxDepth", Description: "maximum tree depth to return; unbounded if absent"},
		{Name: "encoding", Description: "\"msgpack\" for a compact binary tree instead of JSON", Default: "json", Examples: []string{"json", "msgpack"}},
	}, true, func(req *Request) *Response {
		maxDepth := parsePositiveInt(req.Query("maxDepth"), -1)

		var tree ViewNode
		h.main.RunOnMainThread(func() {
			h.registry.Clear()
			root := h.provider.Root()
			tree = h.walk(root, maxDepth, 0)
		})

		if req.Query("encoding") == "msgpack" {
			return MsgpackResponse(StatusOK, tree)
		}
		return JSONResponse(StatusOK, tree)
	})

	return rt
}

// walk recursively builds a ViewNode for node, registering it into the
// address registry and stopping at maxDepth (if maxDepth >= 0).
func (h *HierarchyEndpoint) walk(node interface{}, maxDepth, depth int) ViewNode {
	addr := h.registry.Register(node)

	out := ViewNode{
		Address:   AddressString(addr),
		ClassName: h.provider.ClassNameOf(node),
	}

	if maxDepth >= 0 && depth >= maxDepth {
		return out
	}

	for _, child := range h.provider.ChildrenOf(node) {
		out.Children = append(out.Children, h.walk(child, maxDepth, depth+1))
	}

	return out
}

// ObjectAt resolves addr back to a live, previously-walked node of the
// expected reflect.Type, delegating to the registry's own four-step
// validation.
func (h *HierarchyEndpoint) ObjectAt(addr uintptr, target reflect.Type) (interface{}, bool) {
	return h.registry.ObjectAt(addr, target)
}

// parsePositiveInt parses s as a non-negative integer, returning def if s
// is empty or unparseable.
func parsePositiveInt(s string, def int) int {
	if s == "" {
		return def
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}
