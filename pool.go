package xplorer

import (
	"bytes"
	"sync"
)

// bufferPool is a sync.Pool of *bytes.Buffer. The HTTP transport needs one
// reusable allocation per connection, the buffer it assembles a response
// header block into, and pooling it keeps steady-state serving free of
// per-request buffer churn.
type bufferPool struct {
	pool *sync.Pool
}

// newBufferPool returns an empty bufferPool.
func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: &sync.Pool{
			New: func() interface{} { return &bytes.Buffer{} },
		},
	}
}

// Get returns an empty (Reset) *bytes.Buffer.
func (p *bufferPool) Get() *bytes.Buffer {
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns buf to the pool.
func (p *bufferPool) Put(buf *bytes.Buffer) {
	p.pool.Put(buf)
}
