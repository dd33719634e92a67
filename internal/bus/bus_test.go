package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	ch, cancel := b.Subscribe(TopicExpenses, 4)
	defer cancel()

	b.Publish(Event{Topic: TopicExpenses, Op: OpCreated, OwnerID: "u1", EntityID: "e1"})

	select {
	case e := <-ch:
		assert.Equal(t, TopicExpenses, e.Topic)
		assert.Equal(t, OpCreated, e.Op)
		assert.Equal(t, "e1", e.EntityID)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublish_OtherTopicNotDelivered(t *testing.T) {
	b := New()
	defer b.Close()

	ch, cancel := b.Subscribe(TopicIncomes, 4)
	defer cancel()

	b.Publish(Event{Topic: TopicExpenses, Op: OpCreated})

	select {
	case e := <-ch:
		t.Fatalf("unexpected event: %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublish_DropsWhenFull(t *testing.T) {
	b := New()
	defer b.Close()

	ch, cancel := b.Subscribe(TopicExpenses, 1)
	defer cancel()

	// second publish must not block even though nobody is reading
	done := make(chan struct{})
	go func() {
		b.Publish(Event{Topic: TopicExpenses, EntityID: "1"})
		b.Publish(Event{Topic: TopicExpenses, EntityID: "2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	e := <-ch
	assert.Equal(t, "1", e.EntityID)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	ch, cancel := b.Subscribe(TopicExpenses, 4)
	cancel()

	// channel closed after cancel
	_, ok := <-ch
	require.False(t, ok)

	// publishing after cancel must not panic
	b.Publish(Event{Topic: TopicExpenses})
	cancel() // second cancel is a no-op
}

func TestClose(t *testing.T) {
	b := New()
	ch, _ := b.Subscribe(TopicBudgets, 1)
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	// all post-close operations are no-ops
	b.Publish(Event{Topic: TopicBudgets})
	b.Close()

	ch2, cancel2 := b.Subscribe(TopicBudgets, 1)
	_, ok = <-ch2
	assert.False(t, ok)
	cancel2()
}
