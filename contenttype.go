package xplorer

import (
	"path/filepath"
	"strings"

	"github.com/aofei/mimesniffer"
)

// sniffContentType classifies an arbitrary payload into a ContentType.
// The bundled /files/read endpoint uses this to content-type the raw file
// bytes it returns. name may be empty; when it isn't, its
// extension is tried first since it is cheaper and more precise than
// sniffing.
func sniffContentType(name string, data []byte) ContentType {
	if name != "" {
		if ct, ok := contentTypeByExtension(filepath.Ext(name)); ok {
			return ct
		}
	}
	return contentTypeFromWire(mimesniffer.Sniff(data))
}

// contentTypeByExtension maps a small set of well-known file extensions
// directly onto the closed ContentType enum, skipping mimesniffer.Sniff's
// byte-sampling heuristics entirely when the extension already tells us
// enough.
func contentTypeByExtension(ext string) (ContentType, bool) {
	switch strings.ToLower(ext) {
	case ".json":
		return ContentTypeJSON, true
	case ".html", ".htm":
		return ContentTypeHTML, true
	case ".txt", ".log":
		return ContentTypeText, true
	case ".png":
		return ContentTypePNG, true
	case ".jpg", ".jpeg":
		return ContentTypeJPEG, true
	default:
		return "", false
	}
}
