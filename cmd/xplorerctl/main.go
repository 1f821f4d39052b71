// Command xplorerctl is a minimal CLI client for the xplorer debug RPC
// server: it issues a single request against a running server, over plain
// HTTP or over the P2P QUIC transport, and prints the response body.
// Argument parsing and response pretty-printing are peripheral to the
// server itself, so this stays intentionally thin.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/xplorerhq/xplorer"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "server address (HTTP host:port, or UDP host:port with -p2p)")
	path := flag.String("path", "/", "request path, including any query string")
	p2p := flag.Bool("p2p", false, "connect over the QUIC P2P transport instead of HTTP")
	timeout := flag.Duration("timeout", 30*time.Second, "overall request deadline")
	flag.Parse()

	var err error
	if *p2p {
		err = callP2P(*addr, *path, *timeout)
	} else {
		err = callHTTP(*addr, *path)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "xplorerctl:", err)
		os.Exit(1)
	}
}

func callHTTP(addr, path string) error {
	resp, err := http.Get(fmt.Sprintf("http://%s%s", addr, path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", resp.Proto, resp.Status)
	os.Stdout.Write(body)
	fmt.Println()
	return nil
}

func callP2P(addr, path string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := xplorer.DialP2P(ctx, addr)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Call(ctx, p2pRequest(path))
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", resp.Status, resp.ContentType)
	os.Stdout.Write(resp.Body)
	fmt.Println()
	return nil
}

// p2pRequest splits a "-path" value of the form "/a/b?k=v" into a Request,
// since the P2P wire carries path and query as separate fields.
func p2pRequest(path string) *xplorer.Request {
	req := xplorer.NewRequest(path)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		req.Path = path[:i]
		for _, pair := range strings.Split(path[i+1:], "&") {
			key, value, _ := strings.Cut(pair, "=")
			if dk, err := url.QueryUnescape(key); err == nil {
				key = dk
			}
			if dv, err := url.QueryUnescape(value); err == nil {
				value = dv
			}
			if key != "" {
				req.QueryParams[key] = value
			}
		}
	}
	return req
}
