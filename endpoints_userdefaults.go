package xplorer

import "sync"

// KeyValueStore is implemented by whatever preference store the embedding
// application actually uses (NSUserDefaults, SharedPreferences, or — for a
// process with no such platform store — the in-memory InMemoryKeyValueStore
// below). The UserDefaultsEndpoint only needs list/set/delete.
type KeyValueStore interface {
	All() map[string]interface{}
	Set(key string, value interface{})
	Delete(key string)
}

// InMemoryKeyValueStore is a concurrency-safe KeyValueStore with no
// platform dependency, used when the embedding process has no
// preferences store of its own to introspect (e.g. under test).
type InMemoryKeyValueStore struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewInMemoryKeyValueStore returns an empty store.
func NewInMemoryKeyValueStore() *InMemoryKeyValueStore {
	return &InMemoryKeyValueStore{values: map[string]interface{}{}}
}

func (s *InMemoryKeyValueStore) All() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *InMemoryKeyValueStore) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *InMemoryKeyValueStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// UserDefaultsEndpoint is the bundled key-value preferences introspection
// endpoint.
type UserDefaultsEndpoint struct {
	store KeyValueStore
}

// NewUserDefaultsEndpoint returns a UserDefaultsEndpoint backed by store.
func NewUserDefaultsEndpoint(store KeyValueStore) *UserDefaultsEndpoint {
	return &UserDefaultsEndpoint{store: store}
}

// Router builds the mountable sub-router: "/" is discovery; "/all" dumps
// every key/value pair; "/set" and "/delete" mutate a single key.
func (u *UserDefaultsEndpoint) Router() *Router {
	rt := NewRouter("key-value preferences introspection")
	registerIndexHandlers(rt, "key-value preferences introspection")

	rt.Register("/all", "returns every stored key/value pair", nil, false, func(req *Request) *Response {
		return JSONResponse(StatusOK, u.store.All())
	})

	rt.Register("/set", "sets a single key's value", []Parameter{
		{Name: "key", Required: true},
		{Name: "value", Required: true},
	}, false, func(req *Request) *Response {
		key := req.Query("key")
		if key == "" {
			return ErrorResponse(StatusBadRequest, "key is required")
		}
		u.store.Set(key, req.Query("value"))
		return JSONResponse(StatusOK, map[string]string{"key": key})
	})

	rt.Register("/delete", "deletes a single key", []Parameter{
		{Name: "key", Required: true},
	}, false, func(req *Request) *Response {
		key := req.Query("key")
		if key == "" {
			return ErrorResponse(StatusBadRequest, "key is required")
		}
		u.store.Delete(key)
		return JSONResponse(StatusOK, map[string]string{"key": key})
	})

	return rt
}
