package xplorer

import (
	"os"
	"path/filepath"
	"strings"
)

// FilesEndpoint is the bundled "file sandbox" introspection endpoint. What
// constitutes the "sandbox" belongs to the embedding application; this
// bundled implementation roots it at a single configured directory and
// exposes directory listing and raw file reads underneath it.
type FilesEndpoint struct {
	Root string
}

// NewFilesEndpoint returns a FilesEndpoint rooted at root. root is created
// if it does not already exist.
func NewFilesEndpoint(root string) (*FilesEndpoint, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FilesEndpoint{Root: root}, nil
}

// FileInfo describes one entry of a directory listing.
type FileInfo struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDirectory"`
	Size  int64  `json:"size"`
}

// resolve maps a client-supplied sandbox-relative path onto a real
// filesystem path. Joining against a synthetic leading "/" first means
// filepath.Clean resolves any ".." segments against that root rather than
// against f.Root itself, so the result can never climb above the sandbox;
// the HasPrefix check below is a second, defensive line against that same
// invariant rather than the primary enforcement.
func (f *FilesEndpoint) resolve(relative string) (string, bool) {
	cleaned := filepath.Clean("/" + relative)
	full := filepath.Join(f.Root, cleaned)
	if full != f.Root && !strings.HasPrefix(full, f.Root+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// Router builds the mountable sub-router for the file sandbox: "/" lists
// the router's own discovery info; "/list" lists a directory; "/read"
// returns a file's raw bytes, content-typed via sniffContentType.
func (f *FilesEndpoint) Router() *Router {
	rt := NewRouter("file sandbox introspection")
	registerIndexHandlers(rt, "file sandbox introspection")

	rt.Register("/list", "lists the contents of a sandbox directory", []Parameter{
		{Name: "path", Description: "sandbox-relative directory path", Default: "/"},
	}, false, func(req *Request) *Response {
		full, ok := f.resolve(req.Query("path"))
		if !ok {
			return ErrorResponse(StatusBadRequest, "path escapes sandbox root")
		}

		entries, err := os.ReadDir(full)
		if err != nil {
			return ErrorResponse(StatusNotFound, "no such directory")
		}

		infos := make([]FileInfo, 0, len(entries))
		for _, e := range entries {
			fi, err := e.Info()
			if err != nil {
				continue
			}
			infos = append(infos, FileInfo{Name: e.Name(), IsDir: e.IsDir(), Size: fi.Size()})
		}

		return JSONResponse(StatusOK, infos)
	})

	rt.Register("/read", "reads a sandbox file's raw content", []Parameter{
		{Name: "path", Description: "sandbox-relative file path", Required: true},
	}, false, func(req *Request) *Response {
		relative := req.Query("path")
		if relative == "" {
			return ErrorResponse(StatusBadRequest, "path is required")
		}

		full, ok := f.resolve(relative)
		if !ok {
			return ErrorResponse(StatusBadRequest, "path escapes sandbox root")
		}

		data, err := os.ReadFile(full)
		if err != nil {
			return ErrorResponse(StatusNotFound, "no such file")
		}

		return &Response{Status: StatusOK, ContentType: sniffContentType(full, data), Body: data}
	})

	return rt
}
