package xplorer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"testing"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"path":"/ping"}`)

	require.NoError(t, writeFrame(&buf, payload))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 0)
	buf.Write(lenBuf[:])

	_, err := readFrame(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameRejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], maxFrameSize+1)
	buf.Write(lenBuf[:])

	_, err := readFrame(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteFrameRejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	err := writeFrame(&buf, make([]byte, maxFrameSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestSelfSignedTLSConfigUsesIdentityKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	tlsConf, err := selfSignedTLSConfig(priv)
	require.NoError(t, err)
	require.Len(t, tlsConf.Certificates, 1)
	assert.Contains(t, tlsConf.NextProtos, p2pALPN)
}

// startTestP2PServer starts a P2P transport on a kernel-assigned loopback
// port, serving the given router, and tears it down with the test.
func startTestP2PServer(t *testing.T, rt *Router) *P2PTransport {
	t.Helper()

	tr := NewP2PTransport("127.0.0.1:0", rt, nil, NewIdentity(t.TempDir()), nil)
	require.NoError(t, tr.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tr.Stop(ctx)
	})

	return tr
}

func TestP2PTransportEndToEnd(t *testing.T) {
	rt := NewRouter("test")
	rt.Register("/echo", "", nil, false, func(req *Request) *Response {
		return JSONResponse(StatusOK, map[string]string{
			"q":    req.Query("q"),
			"body": string(req.Body),
			"meta": req.Metadata["client"],
		})
	})

	tr := startTestP2PServer(t, rt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialP2P(ctx, tr.Addr())
	require.NoError(t, err)
	defer client.Close()

	req := NewRequest("/echo")
	req.QueryParams["q"] = "hello"
	req.Metadata["client"] = "test"
	req.Body = []byte("payload")

	resp, err := client.Call(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, ContentTypeJSON, resp.ContentType)
	assert.JSONEq(t, `{"q":"hello","body":"payload","meta":"test"}`, string(resp.Body))
}

func TestP2PTransportMalformedJSONGetsBadRequest(t *testing.T) {
	tr := startTestP2PServer(t, NewRouter("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := quic.DialAddr(ctx, tr.Addr(), &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{p2pALPN},
	}, nil)
	require.NoError(t, err)
	defer conn.CloseWithError(0, "")

	stream, err := conn.OpenStreamSync(ctx)
	require.NoError(t, err)
	require.NoError(t, writeFrame(stream, []byte("{not json")))
	require.NoError(t, stream.Close())

	frame, err := readFrame(stream)
	require.NoError(t, err)
	resp, err := decodeWireResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, StatusBadRequest, resp.Status)
}

func TestP2PTransportOversizeFrameAbortsStreamOnly(t *testing.T) {
	rt := NewRouter("test")
	rt.Register("/info", "", nil, false, func(*Request) *Response {
		return JSONResponse(StatusOK, map[string]bool{"alive": true})
	})
	tr := startTestP2PServer(t, rt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := quic.DialAddr(ctx, tr.Addr(), &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{p2pALPN},
	}, nil)
	require.NoError(t, err)
	defer conn.CloseWithError(0, "")

	bad, err := conn.OpenStreamSync(ctx)
	require.NoError(t, err)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 0x07000000)
	_, err = bad.Write(lenBuf[:])
	require.NoError(t, err)
	require.NoError(t, bad.Close())

	// The oversize stream yields no response frame.
	bad.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = readFrame(bad)
	assert.Error(t, err)

	// A fresh stream on the same connection still serves.
	good, err := conn.OpenStreamSync(ctx)
	require.NoError(t, err)
	payload, err := encodeWireRequest(NewRequest("/info"))
	require.NoError(t, err)
	require.NoError(t, writeFrame(good, payload))
	require.NoError(t, good.Close())

	frame, err := readFrame(good)
	require.NoError(t, err)
	resp, err := decodeWireResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
}

func TestP2PTransportIdentityStableAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	rt := NewRouter("test")

	tr := NewP2PTransport("127.0.0.1:0", rt, nil, NewIdentity(dir), nil)
	require.NoError(t, tr.Start(context.Background()))
	first := tr.NodeIdentity()
	require.NotEmpty(t, first)
	require.NoError(t, tr.Stop(context.Background()))

	tr2 := NewP2PTransport("127.0.0.1:0", rt, nil, NewIdentity(dir), nil)
	require.NoError(t, tr2.Start(context.Background()))
	defer tr2.Stop(context.Background())

	assert.Equal(t, first, tr2.NodeIdentity())
}

func TestP2PTransportForceNewIdentity(t *testing.T) {
	dir := t.TempDir()
	rt := NewRouter("test")

	tr := NewP2PTransport("127.0.0.1:0", rt, nil, NewIdentity(dir), nil)
	require.NoError(t, tr.Start(context.Background()))
	first := tr.NodeIdentity()
	require.NoError(t, tr.Stop(context.Background()))

	tr2 := NewP2PTransport("127.0.0.1:0", rt, nil, NewIdentity(dir), nil)
	tr2.ForceNewIdentity()
	require.NoError(t, tr2.Start(context.Background()))
	defer tr2.Stop(context.Background())

	assert.NotEqual(t, first, tr2.NodeIdentity())
}
