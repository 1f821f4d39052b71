package xplorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseCacheGetSetRoundTrip(t *testing.T) {
	c := NewResponseCache(1<<20, time.Minute)
	req := NewRequest("/hierarchy/views")
	req.QueryParams["maxDepth"] = "2"

	_, ok := c.Get(req)
	assert.False(t, ok)

	resp := JSONResponse(StatusOK, map[string]string{"hit": "true"})
	c.Set(req, resp)

	cached, ok := c.Get(req)
	assert.True(t, ok)
	assert.Equal(t, resp.Status, cached.Status)
	assert.Equal(t, resp.Body, cached.Body)
}

func TestResponseCacheExpiresAfterTTL(t *testing.T) {
	c := NewResponseCache(1<<20, time.Millisecond)
	req := NewRequest("/hierarchy/views")

	c.Set(req, JSONResponse(StatusOK, nil))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(req)
	assert.False(t, ok)
}

func TestResponseCacheKeyIncludesQueryParams(t *testing.T) {
	c := NewResponseCache(1<<20, time.Minute)

	req1 := NewRequest("/hierarchy/views")
	req1.QueryParams["maxDepth"] = "1"
	c.Set(req1, JSONResponse(StatusOK, map[string]string{"depth": "1"}))

	req2 := NewRequest("/hierarchy/views")
	req2.QueryParams["maxDepth"] = "2"

	_, ok := c.Get(req2)
	assert.False(t, ok, "a different query string must not hit the same cache entry")
}
