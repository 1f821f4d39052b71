package xplorer

import (
	"encoding/binary"
	"sort"
	"time"

	"github.com/VictoriaMetrics/fastcache"
)

// ResponseCache memoizes Router.Handle results keyed by request path+query
// for a short, fixed TTL, aimed at the burst of near-simultaneous GETs a
// debugger UI tends to issue while a view hierarchy is expanded (many
// sibling nodes each re-requesting the same parent's summary). An
// HTTPTransport given a ResponseCache stores every StatusOK response it
// serves, whatever the path: there is no per-endpoint exclusion, so within
// the TTL a repeated request to any endpoint (including /logs/fetch or one
// with side effects such as /logs/clear) is answered from the cache without
// reaching its handler.
type ResponseCache struct {
	cache *fastcache.Cache
	ttl   time.Duration
}

// NewResponseCache returns a cache with the given maximum memory budget
// (bytes) and per-entry time-to-live.
func NewResponseCache(maxBytes int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		cache: fastcache.New(maxBytes),
		ttl:   ttl,
	}
}

// cacheKey is the request path concatenated with a stable rendering of its
// query params (sorted by key), so Get and Set, which each build the key
// themselves, agree on it for the same request.
func cacheKey(req *Request) string {
	keys := make([]string, 0, len(req.QueryParams))
	for k := range req.QueryParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := req.Path
	for _, k := range keys {
		key += "\x00" + k + "=" + req.QueryParams[k]
	}
	return key
}

// Get returns the cached Response for req, if present and not expired.
func (rc *ResponseCache) Get(req *Request) (*Response, bool) {
	key := []byte(cacheKey(req))

	raw, ok := rc.cache.HasGet(nil, key)
	if !ok {
		return nil, false
	}

	storedAt, body, contentType, status, ok := decodeCachedEntry(raw)
	if !ok {
		return nil, false
	}
	if time.Since(storedAt) > rc.ttl {
		rc.cache.Del(key)
		return nil, false
	}

	return &Response{Status: status, ContentType: contentType, Body: body}, true
}

// Set caches resp under req's key, stamped with the current time so a
// later Get can enforce the TTL.
func (rc *ResponseCache) Set(req *Request, resp *Response) {
	key := []byte(cacheKey(req))
	rc.cache.Set(key, encodeCachedEntry(time.Now(), resp))
}

// encodeCachedEntry packs a timestamp and a Response into one byte slice:
// [8 bytes unix-nano][2 bytes status][2 bytes content-type length][content
// type][body].
func encodeCachedEntry(at time.Time, resp *Response) []byte {
	ct := []byte(resp.ContentType)

	buf := make([]byte, 8+2+2+len(ct)+len(resp.Body))
	binary.BigEndian.PutUint64(buf[0:8], uint64(at.UnixNano()))
	binary.BigEndian.PutUint16(buf[8:10], uint16(resp.Status))
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(ct)))
	copy(buf[12:12+len(ct)], ct)
	copy(buf[12+len(ct):], resp.Body)

	return buf
}

// decodeCachedEntry is the inverse of encodeCachedEntry.
func decodeCachedEntry(buf []byte) (at time.Time, body []byte, contentType ContentType, status Status, ok bool) {
	if len(buf) < 12 {
		return
	}

	at = time.Unix(0, int64(binary.BigEndian.Uint64(buf[0:8])))
	status = Status(binary.BigEndian.Uint16(buf[8:10]))
	ctLen := int(binary.BigEndian.Uint16(buf[10:12]))

	if len(buf) < 12+ctLen {
		return
	}

	contentType = ContentType(buf[12 : 12+ctLen])
	body = buf[12+ctLen:]
	ok = true
	return
}
