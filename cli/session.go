package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/typing"
)

// chatSession is one participant attached to one chat from the terminal.
type chatSession struct {
	client       *Client
	chatID       string
	pid          string
	role         domain.Role
	pollInterval time.Duration
	out          io.Writer

	// next is the transcript index the poller asks for.
	next int
	// typingState holds the latest typing state not yet sent.
	typingState chan bool
}

func newChatSession(client *Client, chatID, pid string, role domain.Role, poll time.Duration, out io.Writer) *chatSession {
	return &chatSession{
		client:       client,
		chatID:       chatID,
		pid:          pid,
		role:         role,
		pollInterval: poll,
		out:          out,
		typingState:  make(chan bool, 1),
	}
}

// Run polls the transcript and reads input until the chat ends, the user
// quits or ctx is cancelled.
func (s *chatSession) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	debouncer := typing.NewDebouncer(s.queueTyping)
	defer debouncer.Close()

	go s.sendTyping(ctx)

	ended := make(chan struct{})
	go func() {
		defer close(ended)
		if err := s.poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			renderError(s.out, err)
		}
		cancel()
	}()

	lines := make(chan string)
	go s.readInput(ctx, in, debouncer, lines)

	for {
		select {
		case <-ctx.Done():
			<-ended
			return nil
		case line, ok := <-lines:
			if !ok {
				cancel()
				<-ended
				return nil
			}
			debouncer.Stop()
			if quit := s.handleLine(ctx, line); quit {
				cancel()
				<-ended
				return nil
			}
		}
	}
}

// readInput feeds every rune to the debouncer and emits whole lines.
func (s *chatSession) readInput(ctx context.Context, in io.Reader, debouncer *typing.Debouncer, lines chan<- string) {
	defer close(lines)

	emit := func(line string) bool {
		select {
		case lines <- line:
			return true
		case <-ctx.Done():
			return false
		}
	}

	reader := bufio.NewReader(in)
	var sb strings.Builder
	for {
		r, _, err := reader.ReadRune()
		if err != nil {
			if sb.Len() > 0 {
				emit(sb.String())
			}
			return
		}
		if r == '\n' {
			if !emit(sb.String()) {
				return
			}
			sb.Reset()
			continue
		}
		debouncer.Keystroke()
		sb.WriteRune(r)
	}
}

func (s *chatSession) handleLine(ctx context.Context, line string) bool {
	text := strings.TrimSpace(line)
	switch text {
	case "":
		return false
	case "/quit":
		fmt.Fprintln(s.out, "Bye!")
		return true
	case "/end":
		if err := s.client.Complete(ctx, s.chatID, s.pid); err != nil {
			renderError(s.out, err)
		}
		return false
	case "/who":
		chat, err := s.client.GetChat(ctx, s.chatID)
		if err != nil {
			renderError(s.out, err)
			return false
		}
		for _, p := range chat.Participants {
			fmt.Fprintf(s.out, "  %s (%s)\n", p.Nickname, p.Role)
		}
		renderTyping(s.out, chat, s.pid)
		return false
	}

	if err := s.client.SendMessage(ctx, s.chatID, s.pid, text); err != nil {
		renderError(s.out, err)
	}
	return false
}

// queueTyping is the debouncer callback. It runs under the debouncer lock, so
// it only replaces the pending state and never blocks.
func (s *chatSession) queueTyping(on bool) {
	for {
		select {
		case s.typingState <- on:
			return
		default:
		}
		select {
		case <-s.typingState:
		default:
		}
	}
}

func (s *chatSession) sendTyping(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case on := <-s.typingState:
			if err := s.client.SetTyping(ctx, s.chatID, s.pid, on); err != nil && ctx.Err() == nil {
				log.Debug().Err(err).Bool("typing", on).Msg("failed to send typing notification")
			}
		}
	}
}

// poll prints new transcript entries until the chat ends.
func (s *chatSession) poll(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		ended, err := s.pollOnce(ctx)
		if err != nil {
			return err
		}
		if ended {
			renderEnded(s.out)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *chatSession) pollOnce(ctx context.Context) (bool, error) {
	resp, err := s.client.Transcript(ctx, s.chatID, s.next)
	if err != nil {
		return false, err
	}
	for _, msg := range resp.Messages {
		if visible(msg, s.role) {
			renderMessage(s.out, msg, s.pid)
		}
	}
	s.next = resp.NextIndex
	return resp.ChatEnded, nil
}

func (s *chatSession) banner() {
	fmt.Fprintf(s.out, "%s %s as %s\n", color.Green.Sprint("Connected to chat"), s.chatID, s.role)
	fmt.Fprintln(s.out, "Type a message and press Enter to send.")
	fmt.Fprintln(s.out, "Commands: /who, /end, /quit")
}
