package escalation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/livechat/internal/domain"
)

const (
	DefaultMarker      = "#911"
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 8
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMarker sets the prefix that flags a message for escalation.
func WithMarker(marker string) Option {
	return func(d *Dispatcher) { d.marker = marker }
}

// WithTimeout bounds each channel delivery.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithConcurrency bounds how many channels are contacted at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) { d.concurrency = n }
}

// WithPolicy routes every alert through p before each channel.
func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithRecorder stores every outcome with r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// Dispatcher fans flagged messages out to every channel and waits for all of
// them to settle. A failing channel never affects the others or the caller.
type Dispatcher struct {
	channels    []Broadcaster
	marker      string
	timeout     time.Duration
	concurrency int
	policy      Policy
	recorder    Recorder

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher over channels.
func NewDispatcher(channels []Broadcaster, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channels:    channels,
		marker:      DefaultMarker,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Channels returns the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Flagged reports whether text starts with the escalation marker and returns
// the text with the marker and the whitespace after it removed.
func (d *Dispatcher) Flagged(text string) (string, bool) {
	if d.marker == "" || !strings.HasPrefix(text, d.marker) {
		return text, false
	}
	return strings.TrimLeft(text[len(d.marker):], " \t"), true
}

// DispatchIfFlagged starts an asynchronous broadcast when the alert text is
// flagged and reports whether it was. It never blocks on the channels.
func (d *Dispatcher) DispatchIfFlagged(alert Alert) bool {
	stripped, ok := d.Flagged(alert.Text)
	if !ok {
		return false
	}
	alert.Text = stripped

	log.Warn().
		Str("chat_id", alert.ChatID).
		Int("message_index", alert.MessageIndex).
		Int("channels", len(d.channels)).
		Msg("escalation triggered")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Broadcast(context.Background(), alert)
	}()
	return true
}

// Broadcast delivers alert to every channel and returns one outcome per
// channel, in channel order.
func (d *Dispatcher) Broadcast(ctx context.Context, alert Alert) []Outcome {
	outcomes := make([]Outcome, len(d.channels))

	var g errgroup.Group
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for i, ch := range d.channels {
		g.Go(func() error {
			outcomes[i] = d.deliver(ctx, alert, ch)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if !o.OK && !o.Skipped {
			failed++
		}
		d.record(ctx, alert, o)
	}
	log.Info().
		Str("chat_id", alert.ChatID).
		Int("channels", len(outcomes)).
		Int("failed", failed).
		Msg("escalation settled")
	return outcomes
}

// Wait blocks until every dispatch started so far has settled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, alert Alert, ch Broadcaster) (out Outcome) {
	start := time.Now()
	out.Channel = ch.Name()
	defer func() {
		out.Duration = time.Since(start)
	}()

	if d.policy != nil {
		allowed, err := d.policy.Allow(ctx, map[string]interface{}{
			"chat_id":     alert.ChatID,
			"subject":     alert.Subject,
			"sender_role": string(alert.SenderRole),
			"channel":     ch.Name(),
			"text":        alert.Text,
		})
		switch {
		case err != nil:
			// Fail open: an unreadable policy must not silence an emergency.
			log.Error().Err(err).Str("channel", out.Channel).Msg("escalation policy failed, sending anyway")
		case !allowed:
			out.Skipped = true
			log.Info().Str("chat_id", alert.ChatID).Str("channel", out.Channel).Msg("escalation skipped by policy")
			return out
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := safeSend(sendCtx, ch, alert.Text); err != nil {
		out.Err = err
		log.Error().Err(err).Str("chat_id", alert.ChatID).Str("channel", out.Channel).Msg("escalation delivery failed")
		return out
	}
	out.OK = true
	return out
}

func safeSend(ctx context.Context, ch Broadcaster, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()
	return ch.Send(ctx, text)
}

func (d *Dispatcher) record(ctx context.Context, alert Alert, o Outcome) {
	if d.recorder == nil {
		return
	}
	e := &domain.Escalation{
		EscalationID: uuid.New().String(),
		ChatID:       alert.ChatID,
		MessageIndex: alert.MessageIndex,
		Channel:      o.Channel,
		Text:         alert.Text,
		OK:           o.OK,
		Skipped:      o.Skipped,
		DurationMs:   o.Duration.Milliseconds(),
		DispatchedAt: time.Now(),
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	if err := d.recorder.RecordEscalation(ctx, e); err != nil {
		log.Error().Err(err).Str("chat_id", alert.ChatID).Str("channel", o.Channel).Msg("failed to record escalation")
	}
}
