package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/zhouzirui/swipesafe/backend/internal/analysis/outcome"
	"github.com/zhouzirui/swipesafe/backend/internal/service/call"
	"github.com/zhouzirui/swipesafe/backend/internal/service/progress"
	"github.com/zhouzirui/swipesafe/backend/internal/service/scenario"
	"github.com/zhouzirui/swipesafe/backend/internal/service/speech"
)

const hangUpCommand = "/hangup"

// terminalOutput 把来电方的台词打印到终端。
type terminalOutput struct {
	w io.Writer
}

func (o terminalOutput) Prime(context.Context) error { return nil }

func (o terminalOutput) Speak(_ context.Context, u speech.Utterance) error {
	_, err := fmt.Fprintf(o.w, "\ncaller> %s\nyou> ", u.Text)
	return err
}

func (o terminalOutput) Cancel() {}

func play(parent context.Context, in io.Reader, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, _, err := scenario.Setup(ctx, cfg)
	if err != nil {
		return err
	}

	opts := call.Options{
		PlayerID:      playerID,
		MaxDuration:   cfg.Call.MaxDuration,
		FallbackDelay: cfg.Call.FallbackDelay,
		ReplyDelay:    call.UniformDelay(cfg.Call.ReplyDelayMin, cfg.Call.ReplyDelayMax),
		Output:        terminalOutput{w: out},
	}
	if maxDuration > 0 {
		opts.MaxDuration = maxDuration
	}
	if dbPath != "" {
		store, err := progress.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Recorder = store
	}

	session := call.NewSession(uuid.NewString(), client, opts)
	events, unsubscribe := session.Events().Subscribe(64)
	defer unsubscribe()
	go printAlerts(out, events)

	if err := session.Start(ctx); err != nil {
		return err
	}

	snap := session.Snapshot()
	fmt.Fprintf(out, "Incoming call from %s (%s)\n", snap.CallerName, snap.CallerNumber)
	fmt.Fprintf(out, "Answer? [y/N] ")

	lines := readLines(in)

	select {
	case line, ok := <-lines:
		if !ok || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
			result, err := session.Decline()
			if err != nil {
				return err
			}
			return finish(out, session, result)
		}
	case <-session.Done():
		return finishFromSession(out, session)
	case <-ctx.Done():
		result, _ := session.End()
		return finish(out, session, result)
	}

	if err := session.Accept(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "(type your replies, %s to end the call)\n", hangUpCommand)

	for {
		select {
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == hangUpCommand {
				result, err := session.End()
				if err != nil {
					return err
				}
				return finish(out, session, result)
			}
			if err := session.Submit(ctx, line); err != nil {
				if errors.Is(err, call.ErrReplyPending) {
					fmt.Fprintln(out, "(the caller is still talking)")
					continue
				}
				if errors.Is(err, call.ErrInvalidPhase) {
					return finishFromSession(out, session)
				}
				return err
			}
		case <-session.Done():
			fmt.Fprintln(out, "\n(the call timed out)")
			return finishFromSession(out, session)
		case <-ctx.Done():
			result, _ := session.End()
			return finish(out, session, result)
		}
	}
}

func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func printAlerts(out io.Writer, events <-chan call.Event) {
	for ev := range events {
		switch ev.Type {
		case call.EventCategory:
			labels := make([]string, 0, len(ev.Categories))
			for _, c := range ev.Categories {
				labels = append(labels, c.Label())
			}
			fmt.Fprintf(out, "\n  [!] caller asked for: %s\n", strings.Join(labels, ", "))
		case call.EventDisclosure:
			fmt.Fprintln(out, "\n  [!] you just shared sensitive information")
		}
	}
}

func finishFromSession(out io.Writer, session *call.Session) error {
	result, ok := session.Result()
	if !ok {
		return errors.New("call ended without a result")
	}
	return finish(out, session, result)
}

func finish(out io.Writer, session *call.Session, result outcome.Result) error {
	session.Wait()
	snap := session.Snapshot()

	fmt.Fprintf(out, "\n=== %s ===\n", result.Title)
	fmt.Fprintf(out, "This was a %s call from %s.\n", result.CallType, snap.Persona)
	if !result.Declined {
		fmt.Fprintf(out, "Duration: %s\n", outcome.FormatDuration(result.DurationSeconds))
	}
	fmt.Fprintf(out, "Points: %d  Accuracy: %d%%\n", result.Points, result.Accuracy)
	fmt.Fprintf(out, "%s\n", result.Tip)
	return nil
}
