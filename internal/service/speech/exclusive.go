package speech

import (
	"context"
	"sync"
)

// ExclusiveOutput serialises an Output so that at most one utterance plays:
// every Speak cancels whatever was started before it. The inner Prime and
// Speak run without the lock held, so Cancel never waits on playback.
type ExclusiveOutput struct {
	mu       sync.Mutex
	inner    Output
	speaking bool
	primed   bool
}

func NewExclusiveOutput(inner Output) *ExclusiveOutput {
	if inner == nil {
		inner = NopOutput{}
	}
	return &ExclusiveOutput{inner: inner}
}

// Prime 只会真正执行一次。
func (o *ExclusiveOutput) Prime(ctx context.Context) error {
	o.mu.Lock()
	if o.primed {
		o.mu.Unlock()
		return nil
	}
	o.primed = true
	o.mu.Unlock()
	return o.inner.Prime(ctx)
}

// Speak 不会在 ctx 已取消时开始播放。
func (o *ExclusiveOutput) Speak(ctx context.Context, u Utterance) error {
	o.mu.Lock()
	if err := ctx.Err(); err != nil {
		o.mu.Unlock()
		return err
	}
	if o.speaking {
		o.inner.Cancel()
	}
	o.speaking = true
	o.mu.Unlock()
	return o.inner.Speak(ctx, u)
}

func (o *ExclusiveOutput) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.speaking {
		return
	}
	o.speaking = false
	o.inner.Cancel()
}

// ExclusiveInput rejects a StartCapture while a capture is already running.
type ExclusiveInput struct {
	mu        sync.Mutex
	inner     Input
	capturing bool
}

func NewExclusiveInput(inner Input) *ExclusiveInput {
	if inner == nil {
		inner = NopInput{}
	}
	return &ExclusiveInput{inner: inner}
}

func (i *ExclusiveInput) StartCapture(ctx context.Context) (<-chan Transcript, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.capturing {
		return nil, ErrCaptureActive
	}

	ch, err := i.inner.StartCapture(ctx)
	if err != nil {
		return nil, err
	}
	i.capturing = true
	return ch, nil
}

func (i *ExclusiveInput) StopCapture() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.capturing {
		return
	}
	i.capturing = false
	i.inner.StopCapture()
}

// Capturing reports whether a capture is in progress.
func (i *ExclusiveInput) Capturing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.capturing
}
