package call

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	callService "github.com/zhouzirui/swipesafe/backend/internal/service/call"
	"github.com/zhouzirui/swipesafe/backend/internal/service/speech"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// 客户端消息类型
const (
	msgText       = "text"
	msgTranscript = "transcript"
	msgAccept     = "accept"
	msgDecline    = "decline"
	msgEnd        = "end"
	msgCaptureOn  = "capture_start"
	msgCaptureOff = "capture_stop"
)

type inboundMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	IsFinal *bool  `json:"isFinal,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connState 是单个连接的上下文。
type connState struct {
	session *callService.Session
	input   *transcriptInput
	capture *speech.ExclusiveInput
	send    func(outgoingMessage)
}

// handleWebSocket 建立通话的双向通道：推送会话事件，接收文字/语音转写与接听挂断指令
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	events, unsubscribe := session.Events().Subscribe(64)
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[websocket] upgrade failed", "session", session.ID(), "err", err)
		return
	}
	defer conn.Close()

	slog.Info("[websocket] connection opened", "session", session.ID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan outgoingMessage, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, cancel, conn, session.ID(), events, out)
	}()

	send := func(msg outgoingMessage) {
		msg.SessionID = session.ID()
		msg.Timestamp = time.Now().Unix()
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}

	input := &transcriptInput{}
	state := &connState{
		session: session,
		input:   input,
		capture: speech.NewExclusiveInput(input),
		send:    send,
	}
	defer state.capture.StopCapture()

	send(outgoingMessage{Type: "snapshot", Data: session.Snapshot()})
	// 通话已结束时补发结果，写端随后关闭连接
	if ev, ended := session.ResultEvent(); ended {
		send(outgoingMessage{Type: string(ev.Type), Data: ev})
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	// 写端退出后给对端一秒时间回应关闭帧
	go func() {
		<-ctx.Done()
		conn.SetReadDeadline(time.Now().Add(time.Second))
	}()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("[websocket] read error", "session", session.ID(), "err", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if err := h.handleSocketMessage(ctx, state, msg); err != nil {
			send(outgoingMessage{Type: "error", Data: map[string]string{"message": err.Error()}})
		}
	}

	cancel()
	<-writerDone
	slog.Info("[websocket] connection closed", "session", session.ID())
}

// handleSocketMessage 处理一条客户端消息。
func (h *Handler) handleSocketMessage(ctx context.Context, state *connState, msg inboundMessage) error {
	session := state.session
	switch msg.Type {
	case msgText:
		return session.Submit(ctx, msg.Text)
	case msgTranscript:
		final := msg.IsFinal == nil || *msg.IsFinal
		if state.input.push(speech.Transcript{Text: msg.Text, Final: final}) {
			return nil
		}
		// 未开启采集时直接提交最终结果，中间结果只用于前端展示
		if !final {
			return nil
		}
		return session.Submit(ctx, msg.Text)
	case msgCaptureOn:
		transcripts, err := state.capture.StartCapture(ctx)
		if err != nil {
			return err
		}
		go consumeTranscripts(ctx, state, transcripts)
		state.send(outgoingMessage{Type: "capture", Data: map[string]bool{"active": true}})
		return nil
	case msgCaptureOff:
		state.capture.StopCapture()
		state.send(outgoingMessage{Type: "capture", Data: map[string]bool{"active": false}})
		return nil
	case msgAccept:
		return session.Accept(ctx)
	case msgDecline:
		_, err := session.Decline()
		return err
	case msgEnd:
		_, err := session.End()
		return err
	default:
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}
}

// consumeTranscripts 把采集期间的最终转写提交为用户发言。
func consumeTranscripts(ctx context.Context, state *connState, transcripts <-chan speech.Transcript) {
	for tr := range transcripts {
		if !tr.Final {
			continue
		}
		if err := state.session.Submit(ctx, tr.Text); err != nil {
			state.send(outgoingMessage{Type: "error", Data: map[string]string{"message": err.Error()}})
		}
	}
}

// writeLoop 是连接上唯一的写入者。会话结果推送后发送关闭帧并退出。
func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sessionID string, events <-chan callService.Event, out <-chan outgoingMessage) {
	defer cancel()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	write := func(v any) bool {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(v); err != nil {
			slog.Warn("[websocket] write failed", "session", sessionID, "err", err)
			return false
		}
		return true
	}
	closeConn := func(reason string) {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-out:
			if !write(msg) {
				return
			}
			if msg.Type == string(callService.EventResult) {
				closeConn("call ended")
				return
			}
		case ev, ok := <-events:
			if !ok {
				closeConn("session closed")
				return
			}
			msg := outgoingMessage{Type: string(ev.Type), SessionID: sessionID, Data: ev, Timestamp: ev.At.Unix()}
			if !write(msg) {
				return
			}
			if ev.Type == callService.EventResult {
				closeConn("call ended")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
