package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFeedDeliversInOrder(t *testing.T) {
	feed := NewFeed[string](false)

	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		feed.Subscribe(func(v string) { got = append(got, name+":"+v) })
	}

	feed.Publish("inhale")
	assert.Equal(t, []string{"a:inhale", "b:inhale", "c:inhale"}, got)
	assert.Equal(t, 3, feed.Len())
}

func TestFeedUnsubscribe(t *testing.T) {
	feed := NewFeed[int](false)

	calls := 0
	unsubscribe := feed.Subscribe(func(int) { calls++ })
	feed.Publish(1)
	unsubscribe()
	unsubscribe()
	feed.Publish(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, feed.Len())
}

func TestFeedSubscriberMayUnsubscribeItself(t *testing.T) {
	feed := NewFeed[int](false)

	calls := 0
	var unsubscribe func()
	unsubscribe = feed.Subscribe(func(int) {
		calls++
		unsubscribe()
	})

	feed.Publish(1)
	feed.Publish(2)
	assert.Equal(t, 1, calls)
}

func TestFeedReplayLast(t *testing.T) {
	feed := NewFeed[string](true)

	var got []string
	feed.Subscribe(func(v string) { got = append(got, v) })
	assert.Empty(t, got, "nothing to replay before the first publish")

	feed.Publish("hold")
	feed.Subscribe(func(v string) { got = append(got, "late:"+v) })
	assert.Equal(t, []string{"hold", "late:hold"}, got)
}

func TestFeedClose(t *testing.T) {
	feed := NewFeed[int](true)

	calls := 0
	feed.Subscribe(func(int) { calls++ })
	feed.Publish(1)
	feed.Close()
	feed.Publish(2)
	feed.Subscribe(func(int) { calls++ })

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, feed.Len())
}

func TestFeedConcurrentPublish(t *testing.T) {
	feed := NewFeed[int](false)

	var mu sync.Mutex
	sum := 0
	feed.Subscribe(func(v int) {
		mu.Lock()
		sum += v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			feed.Publish(v)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 5050, sum)
}

func TestFeedNilSubscriberPanics(t *testing.T) {
	feed := NewFeed[int](false)
	assert.Panics(t, func() { feed.Subscribe(nil) })
}
