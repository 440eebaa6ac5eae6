//go:generate go run go.uber.org/mock/mockgen -source=broadcaster.go -destination=../../mocks/mock_broadcaster.go -package=mocks

// Package escalation forwards urgent chat messages to external notification
// channels such as SMS gateways, webhooks, Slack, Redis streams and NATS.
package escalation

import (
	"context"
	"time"

	"github.com/xiaot623/livechat/internal/domain"
)

// Broadcaster is one notification channel.
type Broadcaster interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Alert is a flagged message on its way to the channels.
type Alert struct {
	ChatID       string
	Subject      string
	MessageIndex int
	SenderRole   domain.Role
	Text         string
}

// Outcome is the result of delivering an alert to one channel.
type Outcome struct {
	Channel  string
	OK       bool
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Recorder stores escalation outcomes.
type Recorder interface {
	RecordEscalation(ctx context.Context, e *domain.Escalation) error
}

// Policy decides whether an alert may go to a channel. The input is a plain
// map with keys chat_id, subject, sender_role, channel and text.
type Policy interface {
	Allow(ctx context.Context, input interface{}) (bool, error)
}
