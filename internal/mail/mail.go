// Package mail builds and dispatches the verification and reset emails.
package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

const DefaultFrom = "dev@example.com"

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// LogTransport logs the payload instead of delivering it. Used outside
// production so links can be copied from the logs.
type LogTransport struct {
	Logger *slog.Logger
}

func (t LogTransport) Send(ctx context.Context, msg Message) error {
	l := t.Logger
	if l == nil {
		l = logging.FromContext(ctx)
	}
	l.Info("mail_not_sent_dev_mode",
		"from", msg.From, "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}

// KafkaTransport hands the message to the mail relay through the outbox topic.
type KafkaTransport struct {
	Publisher events.Publisher
	Topic     string
}

func (t KafkaTransport) Send(ctx context.Context, msg Message) error {
	if t.Publisher == nil {
		return errors.New("mail transport not configured")
	}
	topic := t.Topic
	if topic == "" {
		topic = events.TopicMailOutbox
	}
	return t.Publisher.PublishEvent(ctx, topic, uuid.NewString(), msg)
}

// Outbox sends messages off the request path. A failed send is logged and
// never reaches the caller; committed store state is unaffected.
type Outbox struct {
	Transport Transport
	From      string
	Timeout   time.Duration
	// OnFailure is called after a failed send, e.g. to count it.
	OnFailure func()

	wg sync.WaitGroup
}

// Dispatch queues msg and returns immediately. The send keeps the request
// logger but not its cancellation.
func (o *Outbox) Dispatch(ctx context.Context, msg Message) {
	if msg.From == "" {
		msg.From = o.From
	}
	if msg.From == "" {
		msg.From = DefaultFrom
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logging.FromContext(ctx)
	detached := context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		sendCtx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()
		if err := o.Transport.Send(sendCtx, msg); err != nil {
			l.Error("mail_send_failed", "to", msg.To, "subject", msg.Subject, "error", err)
			if o.OnFailure != nil {
				o.OnFailure()
			}
		}
	}()
}

// Wait blocks until every dispatched message has been handed off.
func (o *Outbox) Wait() {
	o.wg.Wait()
}
