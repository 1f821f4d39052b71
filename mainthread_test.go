package xplorer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMainThreadDispatcherIsMainThread(t *testing.T) {
	d := NewMainThreadDispatcher()
	defer d.Stop()

	assert.False(t, d.IsMainThread(), "the test goroutine is not the dispatcher's loop goroutine")

	var observed bool
	d.RunOnMainThread(func() {
		observed = d.IsMainThread()
	})
	assert.True(t, observed)
}

func TestMainThreadDispatcherRunSync(t *testing.T) {
	d := NewMainThreadDispatcher()
	defer d.Stop()

	resp, err := d.RunSync(context.Background(), func() *Response {
		return JSONResponse(StatusOK, map[string]string{"ok": "true"})
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
}

func TestMainThreadDispatcherRunSyncTimeout(t *testing.T) {
	d := NewMainThreadDispatcher()
	defer d.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	go d.RunOnMainThread(func() {
		close(started)
		<-block
	})
	<-started
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.RunSync(ctx, func() *Response {
		return JSONResponse(StatusOK, nil)
	})
	assert.ErrorIs(t, err, ErrMainThreadTimeout)
}
