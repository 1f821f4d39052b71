package xplorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSniffContentTypeByExtension(t *testing.T) {
	assert.Equal(t, ContentTypeJSON, sniffContentType("data.json", []byte(`{}`)))
	assert.Equal(t, ContentTypePNG, sniffContentType("icon.png", []byte{0x89, 'P', 'N', 'G'}))
}

func TestSniffContentTypeFallsBackToSniffing(t *testing.T) {
	pngSignature := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	assert.Equal(t, ContentTypePNG, sniffContentType("", pngSignature))
}

func TestSniffContentTypeUnknownExtensionFallsBackToSniff(t *testing.T) {
	ct := sniffContentType("file.unknownext", []byte("plain text content"))
	assert.NotEmpty(t, ct)
}
