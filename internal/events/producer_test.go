package events

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_MarshalError(t *testing.T) {
	t.Parallel()

	p := NewProducer([]string{"127.0.0.1:1"})
	defer p.Close()

	err := p.PublishEvent(context.Background(), TopicUserEvents, "k", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json.Marshal")
}

func TestProducer_UnreachableBroker(t *testing.T) {
	t.Parallel()

	p := NewProducer([]string{"127.0.0.1:1"})
	p.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(1, retry.NewConstant(10*time.Millisecond))
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.PublishEvent(ctx, TopicUserEvents, "k", UserEvent{Type: UserRegistered})
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	require.NoError(t, r.PublishEvent(context.Background(), TopicUserEvents, "u1", UserEvent{Type: UserRegistered}))
	require.NoError(t, r.PublishEvent(context.Background(), TopicMailOutbox, "u1", "mail"))
	require.NoError(t, Nop{}.PublishEvent(context.Background(), "t", "k", nil))

	assert.Equal(t, []string{UserRegistered}, r.Types())
	assert.Len(t, r.ByTopic(TopicMailOutbox), 1)
}
