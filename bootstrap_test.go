package xplorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountBundledEndpointsDiscoverableFromRoot(t *testing.T) {
	s := NewServer(DefaultConfig())

	files, err := NewFilesEndpoint(t.TempDir())
	require.NoError(t, err)

	hierarchy := NewHierarchyEndpoint(stubViewProvider{}, NewAddressRegistry(), s.MainThreadDispatcher())
	userDefaults := NewUserDefaultsEndpoint(NewInMemoryKeyValueStore())
	permissions := NewPermissionsEndpoint(nil)

	logStore, err := newLogStoreForSession(t.TempDir(), "bootstrap-test")
	require.NoError(t, err)
	t.Cleanup(func() { logStore.Close() })
	logs := NewLogsEndpoint(logStore)

	MountBundledEndpoints(s, files, hierarchy, userDefaults, permissions, logs)

	resp := s.Router.Handle(NewRequest("/"))
	assert.Equal(t, StatusOK, resp.Status)
	assert.Contains(t, string(resp.Body), `"/files"`)
	assert.Contains(t, string(resp.Body), `"/hierarchy"`)
	assert.Contains(t, string(resp.Body), `"/userdefaults"`)
	assert.Contains(t, string(resp.Body), `"/permissions"`)

	notFound := s.Router.Handle(NewRequest("/files/does-not-exist"))
	assert.Equal(t, StatusNotFound, notFound.Status)
	assert.JSONEq(t, `{"error":"Endpoint not found"}`, string(notFound.Body))

	require.NoError(t, s.Stop(context.Background()))
}

type stubViewProvider struct{}

func (stubViewProvider) Root() interface{} { return &struct{ X int }{} }

func (stubViewProvider) ChildrenOf(node interface{}) []interface{} { return nil }

func (stubViewProvider) ClassNameOf(node interface{}) string { return "StubView" }
