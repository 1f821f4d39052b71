package xplorer

import "strings"

// httpHeaders is a case-insensitive HTTP header map, canonicalized on every
// access and holding single string values: this transport never needs
// repeated header fields like Set-Cookie.
type httpHeaders map[string]string

// Get returns the value associated with key, case-insensitively.
func (h httpHeaders) Get(key string) string {
	return h[strings.ToLower(key)]
}

// Set sets key's value, case-insensitively.
func (h httpHeaders) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// toMetadata renders h as the plain map[string]string a Request's Metadata
// field expects.
func (h httpHeaders) toMetadata() map[string]string {
	return map[string]string(h)
}
