package speech

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable 表示运行环境不支持该语音能力。
	ErrUnavailable = errors.New("speech capability unavailable")
	// ErrCaptureActive 表示已有一个采集在进行中。
	ErrCaptureActive = errors.New("voice capture already running")
)

// Utterance is one line of synthetic speech.
type Utterance struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Output 是语音播放能力。Speak 可以阻塞到播放结束，但必须在 ctx 取消或 Cancel 后返回。
type Output interface {
	// Prime performs the one-time unlock some clients need before on-demand playback.
	Prime(ctx context.Context) error
	Speak(ctx context.Context, u Utterance) error
	Cancel()
}

// Transcript is a partial or final recognition result.
type Transcript struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// Input 是语音识别能力。
type Input interface {
	StartCapture(ctx context.Context) (<-chan Transcript, error)
	StopCapture()
}

// NopOutput discards all speech. It stands in when no output device exists.
type NopOutput struct{}

func (NopOutput) Prime(context.Context) error            { return nil }
func (NopOutput) Speak(context.Context, Utterance) error { return nil }
func (NopOutput) Cancel()                                {}

// NopInput reports that voice capture is unsupported.
type NopInput struct{}

func (NopInput) StartCapture(context.Context) (<-chan Transcript, error) { return nil, ErrUnavailable }
func (NopInput) StopCapture()                                            {}
