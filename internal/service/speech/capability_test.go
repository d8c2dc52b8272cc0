package speech

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingOutput struct {
	calls []string
}

func (r *recordingOutput) Prime(context.Context) error {
	r.calls = append(r.calls, "prime")
	return nil
}

func (r *recordingOutput) Speak(_ context.Context, u Utterance) error {
	r.calls = append(r.calls, "speak:"+u.Text)
	return nil
}

func (r *recordingOutput) Cancel() {
	r.calls = append(r.calls, "cancel")
}

func TestExclusiveOutputCancelsPreviousUtterance(t *testing.T) {
	inner := &recordingOutput{}
	out := NewExclusiveOutput(inner)
	ctx := context.Background()

	require.NoError(t, out.Prime(ctx))
	require.NoError(t, out.Prime(ctx))
	require.NoError(t, out.Speak(ctx, Utterance{Text: "one"}))
	require.NoError(t, out.Speak(ctx, Utterance{Text: "two"}))
	out.Cancel()
	out.Cancel()

	assert.Equal(t, []string{"prime", "speak:one", "cancel", "speak:two", "cancel"}, inner.calls)
}

func TestExclusiveOutputSkipsCancelledContext(t *testing.T) {
	inner := &recordingOutput{}
	out := NewExclusiveOutput(inner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, out.Speak(ctx, Utterance{Text: "late"}), context.Canceled)
	out.Cancel()
	assert.Empty(t, inner.calls)
}

type fakeInput struct {
	starts int
	stops  int
}

func (f *fakeInput) StartCapture(context.Context) (<-chan Transcript, error) {
	f.starts++
	return make(chan Transcript), nil
}

func (f *fakeInput) StopCapture() { f.stops++ }

func TestExclusiveInputRejectsReentrantStart(t *testing.T) {
	inner := &fakeInput{}
	in := NewExclusiveInput(inner)
	ctx := context.Background()

	_, err := in.StartCapture(ctx)
	require.NoError(t, err)
	assert.True(t, in.Capturing())

	_, err = in.StartCapture(ctx)
	assert.ErrorIs(t, err, ErrCaptureActive)
	assert.Equal(t, 1, inner.starts)

	in.StopCapture()
	in.StopCapture()
	assert.Equal(t, 1, inner.stops)

	_, err = in.StartCapture(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.starts)
}

func TestNopCapabilities(t *testing.T) {
	in := NewExclusiveInput(nil)
	_, err := in.StartCapture(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, in.Capturing())

	out := NewExclusiveOutput(nil)
	assert.NoError(t, out.Speak(context.Background(), Utterance{Text: "hi"}))
}

func TestVoiceFor(t *testing.T) {
	assert.Equal(t, VoiceFemale, VoiceFor("Female"))
	assert.Equal(t, VoiceMale, VoiceFor("male"))
	assert.Equal(t, VoiceMale, VoiceFor(""))
}
