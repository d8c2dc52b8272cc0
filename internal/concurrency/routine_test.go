package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGoRunsFn(t *testing.T) {
	done := make(chan struct{})
	SafeGo(func() { close(done) }, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fn did not run")
	}
}

func TestSafeGoRecoversPanic(t *testing.T) {
	recovered := make(chan any, 1)
	SafeGo(func() { panic("boom") }, func(r any) { recovered <- r })

	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		require.Fail(t, "panic handler was not called")
	}
}

func TestSafeGoNilHandler(t *testing.T) {
	done := make(chan struct{})
	SafeGo(func() {
		defer close(done)
		panic("ignored")
	}, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
}
