package xplorer

// registerIndexHandlers wires "/" on rt to return rt's own RouterInfo,
// honoring the `depth` query parameter: "deep" (the default) recurses into
// every mounted child,
// "shallow" summarizes children as {path, description, endpointCount}
// without descending into them. Sub-routers conventionally register the
// same handler at their own local "/", so a client discovers the whole
// tree by walking "/" links rather than needing an out-of-band endpoint
// list.
func registerIndexHandlers(rt *Router, description string) {
	rt.Register("/", description, nil, false, func(req *Request) *Response {
		deep := req.Query("depth") != "shallow"
		return JSONResponse(StatusOK, rt.RouterInfo(deep))
	})
}
