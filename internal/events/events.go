// Package events publishes user lifecycle events to Kafka.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	UserRegistered  = "user_registered"
	EmailVerified   = "email_verified"
	UserLoggedIn    = "user_logged_in"
	PasswordChanged = "password_changed"
	PasswordReset   = "password_reset"
	AccountDeleted  = "account_deleted"
)

type UserEvent struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

type Recorded struct {
	Topic string
	Key   string
	Event any
}

func (r *Recorder) PublishEvent(_ context.Context, topic, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{Topic: topic, Key: key, Event: event})
	return nil
}

// Types returns the Type of every recorded UserEvent in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.Events {
		if ue, ok := e.Event.(UserEvent); ok {
			out = append(out, ue.Type)
		}
	}
	return out
}

func (r *Recorder) ByTopic(topic string) []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Recorded
	for _, e := range r.Events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
