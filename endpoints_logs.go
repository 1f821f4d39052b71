package xplorer

import "time"

// LogsEndpoint exposes a LogStore for a single session as a bundled
// endpoint: "/" is discovery; "/fetch" queries with the full FetchOptions
// filter set; "/clear" empties the store.
type LogsEndpoint struct {
	store *LogStore
}

// NewLogsEndpoint returns a LogsEndpoint backed by store.
func NewLogsEndpoint(store *LogStore) *LogsEndpoint {
	return &LogsEndpoint{store: store}
}

// Router builds the mountable sub-router.
func (l *LogsEndpoint) Router() *Router {
	rt := NewRouter("session log introspection")
	registerIndexHandlers(rt, "session log introspection")

	rt.Register("/fetch", "fetches log entries matching the given filter", []Parameter{
		{Name: "type", Description: "exact type match"},
		{Name: "textPattern", Description: "SQL LIKE pattern, % and _ as wildcards"},
		{Name: "start", Description: "RFC3339 lower bound, inclusive"},
		{Name: "end", Description: "RFC3339 upper bound, inclusive"},
		{Name: "limit", Description: "maximum rows returned", Default: "0 (unlimited)"},
		{Name: "offset", Description: "rows to skip before the first returned"},
		{Name: "newestFirst", Description: "\"false\" to reverse order", Default: "true"},
	}, false, func(req *Request) *Response {
		opts := NewFetchOptions()
		opts.Type = req.Query("type")
		opts.TextPattern = req.Query("textPattern")
		opts.Limit = parsePositiveInt(req.Query("limit"), 0)
		opts.Offset = parsePositiveInt(req.Query("offset"), 0)
		if req.Query("newestFirst") == "false" {
			opts.NewestFirst = false
		}
		if t, err := time.Parse(time.RFC3339, req.Query("start")); err == nil {
			opts.Start = &t
		}
		if t, err := time.Parse(time.RFC3339, req.Query("end")); err == nil {
			opts.End = &t
		}

		entries, err := l.store.Fetch(opts)
		if err != nil {
			return ErrorResponse(StatusInternalError, err.Error())
		}
		return JSONResponse(StatusOK, entries)
	})

	rt.Register("/clear", "deletes every stored log entry", nil, false, func(req *Request) *Response {
		if err := l.store.Clear(); err != nil {
			return ErrorResponse(StatusInternalError, err.Error())
		}
		return JSONResponse(StatusOK, map[string]string{"status": "cleared"})
	})

	return rt
}
