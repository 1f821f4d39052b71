package xplorer

// MountBundledEndpoints mounts the standard set of bundled introspection
// endpoints under s's root router and registers the root "/" discovery
// handler. Callers that want a different set of endpoints (or none at all,
// e.g. a test exercising only the Router's own mechanics) can skip this
// and mount/register their own.
func MountBundledEndpoints(s *Server, files *FilesEndpoint, hierarchy *HierarchyEndpoint, userDefaults *UserDefaultsEndpoint, permissions *PermissionsEndpoint, logs *LogsEndpoint) {
	s.Router.Mount("/files", files.Router())
	s.Router.Mount("/hierarchy", hierarchy.Router())
	s.Router.Mount("/userdefaults", userDefaults.Router())
	s.Router.Mount("/permissions", permissions.Router())
	s.Router.Mount("/logs", logs.Router())

	registerIndexHandlers(s.Router, "xplorer debug server root")
}
