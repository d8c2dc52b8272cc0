package call

import (
	"context"
	"sync"

	"github.com/zhouzirui/swipesafe/backend/internal/service/speech"
)

// transcriptInput 把浏览器端识别出的转写结果作为语音输入能力交给服务端。
type transcriptInput struct {
	mu sync.Mutex
	ch chan speech.Transcript
}

func (t *transcriptInput) StartCapture(context.Context) (<-chan speech.Transcript, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ch = make(chan speech.Transcript, 16)
	return t.ch, nil
}

func (t *transcriptInput) StopCapture() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ch != nil {
		close(t.ch)
		t.ch = nil
	}
}

// push 在采集进行中时投递转写结果，返回 false 表示当前没有采集。
func (t *transcriptInput) push(tr speech.Transcript) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ch == nil {
		return false
	}
	select {
	case t.ch <- tr:
	default:
	}
	return true
}
