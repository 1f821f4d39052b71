package xplorer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// p2pALPN is the ALPN protocol string QUIC connections for this service
// negotiate. Both ends must present exactly this value; a mismatch fails
// the TLS handshake with a protocol-negotiation error.
const p2pALPN = "app-xplorer/1"

// maxFrameSize is the largest request/response frame this transport will
// read before it gives up and closes the stream.
const maxFrameSize = 100 * 1024 * 1024

// Resolver maps a remote node identity to a dialable address. The P2P
// transport itself only needs to dial an address; how a caller maps a node
// identity string to that address (mDNS on a LAN, a rendezvous server, a
// relay hop) is left pluggable. Dial consults it once and then dials the
// returned address directly; there is no fallback when that dial fails.
type Resolver interface {
	// Resolve returns a dialable address for nodeIdentity.
	Resolve(ctx context.Context, nodeIdentity string) (string, error)
}

// P2PTransport is the QUIC/ALPN Transport: a persistent Ed25519
// node identity, self-signed TLS, and length-prefixed JSON framing over
// bidirectional streams, each stream carrying exactly one request/response
// pair.
type P2PTransport struct {
	router   *Router
	logger   *Logger
	identity *Identity
	resolver Resolver

	addr string

	mu       sync.Mutex
	listener *quic.Listener
	running  bool
	forceNew bool
	wg       sync.WaitGroup
}

// NewP2PTransport returns a P2PTransport listening on addr (a UDP address,
// e.g. "0.0.0.0:4433") once started, persisting its identity under
// identity's storage path. resolver may be nil; it is only consulted by
// Dial, not by the accept side.
func NewP2PTransport(addr string, router *Router, logger *Logger, identity *Identity, resolver Resolver) *P2PTransport {
	return &P2PTransport{
		addr:     addr,
		router:   router,
		logger:   logger,
		identity: identity,
		resolver: resolver,
	}
}

// ForceNewIdentity discards the persisted identity and all endpoint state
// on the next Start. The flag is consumed by that Start; subsequent starts
// reuse the freshly generated key as usual.
func (t *P2PTransport) ForceNewIdentity() {
	t.mu.Lock()
	t.forceNew = true
	t.mu.Unlock()
}

// Start implements Transport: it loads (or generates) the persistent
// identity, derives a self-signed TLS certificate from it, and begins
// accepting QUIC connections.
func (t *P2PTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	force := t.forceNew
	t.forceNew = false

	priv, err := t.identity.Load(force)
	if err != nil {
		return fmt.Errorf("xplorer: load p2p identity: %w", err)
	}

	tlsConf, err := selfSignedTLSConfig(priv)
	if err != nil {
		return fmt.Errorf("xplorer: build p2p tls config: %w", err)
	}

	ln, err := quic.ListenAddr(t.addr, tlsConf, &quic.Config{
		MaxIdleTimeout: 2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("xplorer: p2p listen %s: %w", t.addr, err)
	}

	t.listener = ln
	t.running = true
	t.identity.SetRunning(true)

	t.wg.Add(1)
	go t.acceptLoop(ln)

	return nil
}

// Stop implements Transport.
func (t *P2PTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	ln := t.listener
	t.running = false
	t.mu.Unlock()

	t.identity.SetRunning(false)

	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running implements Transport.
func (t *P2PTransport) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Addr returns the UDP address the transport is actually bound to, or "" if
// it is not running. With a ":0" listen address this is how callers learn
// the kernel-assigned port.
func (t *P2PTransport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// NodeIdentity returns the hex node identity string clients connect by, or
// "" before the first Start has loaded or generated a key.
func (t *P2PTransport) NodeIdentity() string {
	return t.identity.PublicIdentity()
}

// acceptLoop accepts QUIC connections until the listener is closed by Stop.
// Each connection gets its own goroutine accepting streams, and each stream
// gets its own goroutine running exactly one request/response exchange; the
// connection-level loop never waits for a stream to finish before accepting
// the next.
func (t *P2PTransport) acceptLoop(ln *quic.Listener) {
	defer t.wg.Done()

	for {
		conn, err := ln.Accept(context.Background())
		if err != nil {
			return
		}

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.serveConnection(conn)
		}()
	}
}

func (t *P2PTransport) serveConnection(conn quic.Connection) {
	for {
		stream, err := conn.AcceptStream(context.Background())
		if err != nil {
			return
		}

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.serveStream(stream)
		}()
	}
}

// serveStream reads exactly one framed request, dispatches it through the
// router, writes exactly one framed response, then closes the stream. A
// framing failure (bad length, truncated read) aborts the stream without a
// response; only a frame that arrived intact but doesn't parse gets a
// BadRequest back.
func (t *P2PTransport) serveStream(stream quic.Stream) {
	defer stream.Close()

	frame, err := readFrame(stream)
	if err != nil {
		if t.logger != nil {
			t.logger.Debugf("xplorer: p2p read frame: %v", err)
		}
		return
	}

	req, err := decodeWireRequest(frame)
	if err != nil || req.Path == "" || req.Path[0] != '/' {
		writeFrame(stream, mustEncodeWireResponse(ErrorResponse(StatusBadRequest, "malformed request")))
		return
	}

	resp := t.router.Handle(req)

	payload, err := encodeWireResponse(resp)
	if err != nil {
		writeFrame(stream, mustEncodeWireResponse(ErrorResponse(StatusInternalError, "encode response")))
		return
	}
	writeFrame(stream, payload)
}

func mustEncodeWireResponse(resp *Response) []byte {
	b, err := encodeWireResponse(resp)
	if err != nil {
		return []byte(`{"status":500,"content_type":"application/json","body":""}`)
	}
	return b
}

// Dial opens a new QUIC connection to addr (or, if addr is "" and a
// Resolver is configured, to whatever address the Resolver returns for
// nodeIdentity) and returns a P2PClient bound to a single stream-per-call
// discipline matching the server side.
func (t *P2PTransport) Dial(ctx context.Context, nodeIdentity, addr string) (*P2PClient, error) {
	if addr == "" {
		if t.resolver == nil {
			return nil, fmt.Errorf("xplorer: no address given and no resolver configured")
		}
		resolved, err := t.resolver.Resolve(ctx, nodeIdentity)
		if err != nil {
			return nil, fmt.Errorf("xplorer: resolve %s: %w", nodeIdentity, err)
		}
		addr = resolved
	}

	return DialP2P(ctx, addr)
}

// DialP2P connects to a server's P2P endpoint at addr and returns a
// P2PClient once the QUIC handshake has completed. The server's certificate
// is self-signed against its node identity, so chain verification is
// skipped; possession of the endpoint address is the access model.
func DialP2P(ctx context.Context, addr string) (*P2PClient, error) {
	conn, err := quic.DialAddr(ctx, addr, &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{p2pALPN},
	}, &quic.Config{MaxIdleTimeout: 2 * time.Minute})
	if err != nil {
		return nil, fmt.Errorf("xplorer: p2p dial %s: %w", addr, err)
	}

	return &P2PClient{conn: conn}, nil
}

// P2PClient issues request/response calls against one already-established
// QUIC connection, each call opening and closing its own bidirectional
// stream. Connection readiness is observed, never assumed: Dial blocks on
// the QUIC handshake and Call blocks on the stream open, so there is no
// fixed sleep anywhere between "dial" and "first byte".
type P2PClient struct {
	conn quic.Connection
}

// Call sends req on a fresh stream and returns the decoded Response.
func (c *P2PClient) Call(ctx context.Context, req *Request) (*Response, error) {
	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("xplorer: open p2p stream: %w", err)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		stream.SetDeadline(deadline)
	}

	payload, err := encodeWireRequest(req)
	if err != nil {
		return nil, fmt.Errorf("xplorer: encode p2p request: %w", err)
	}
	if err := writeFrame(stream, payload); err != nil {
		return nil, fmt.Errorf("xplorer: write p2p request: %w", err)
	}

	frame, err := readFrame(stream)
	if err != nil {
		return nil, fmt.Errorf("xplorer: read p2p response: %w", err)
	}

	return decodeWireResponse(frame)
}

// Close closes the underlying QUIC connection.
func (c *P2PClient) Close() error {
	return c.conn.CloseWithError(0, "")
}

// readFrame reads one 4-byte-big-endian-length-prefixed JSON frame,
// rejecting a declared length of zero or greater than maxFrameSize before
// ever allocating a buffer for it.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("xplorer: read frame length: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxFrameSize {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("xplorer: read frame body: %w", err)
	}

	return buf, nil
}

// writeFrame writes payload as one length-prefixed frame.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 || len(payload) > maxFrameSize {
		return ErrFrameTooLarge
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// selfSignedTLSConfig builds a tls.Config presenting a self-signed
// certificate derived from priv, so a node's TLS identity is pinned to its
// persistent Ed25519 identity rather than to a CA-issued certificate —
// there is no CA in a peer-to-peer debug transport for one to be issued by.
func selfSignedTLSConfig(priv ed25519.PrivateKey) (*tls.Config, error) {
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "xplorer-node"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, priv.Public(), priv)
	if err != nil {
		return nil, fmt.Errorf("create self-signed certificate: %w", err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{p2pALPN},
	}, nil
}
