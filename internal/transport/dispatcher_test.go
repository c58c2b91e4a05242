package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rainbowrelax/relax-cli/internal/models"
)

func frameSeq(n int64) models.Frame {
	return models.Frame{SchemaVersion: models.FrameSchema, Meta: models.Meta{Sequence: n}}
}

// waitFor polls cond until it holds or a second has passed
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_SingleSubscriber(t *testing.T) {
	source := make(chan models.Frame, 10)
	dispatcher := NewDispatcher(source, 10)
	subscriber := dispatcher.Subscribe()

	for i := int64(0); i < 5; i++ {
		source <- frameSeq(i)
	}
	close(source)

	dispatcher.Run(context.Background())

	count := 0
	for range subscriber {
		count++
	}
	if count != 5 {
		t.Errorf("expected 5 frames, got %d", count)
	}
}

func TestDispatcher_MultipleSubscribers(t *testing.T) {
	source := make(chan models.Frame, 10)
	dispatcher := NewDispatcher(source, 10)

	sub1 := dispatcher.Subscribe()
	sub2 := dispatcher.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Run(ctx)

	numFrames := 10
	for i := 0; i < numFrames; i++ {
		source <- frameSeq(int64(i))
	}
	close(source)

	var wg sync.WaitGroup
	var count1, count2 int

	wg.Add(2)
	go func() {
		defer wg.Done()
		for range sub1 {
			count1++
		}
	}()
	go func() {
		defer wg.Done()
		for range sub2 {
			count2++
		}
	}()
	wg.Wait()

	if count1 != numFrames {
		t.Errorf("subscriber 1: expected %d frames, got %d", numFrames, count1)
	}
	if count2 != numFrames {
		t.Errorf("subscriber 2: expected %d frames, got %d", numFrames, count2)
	}
}

func TestDispatcher_SubscribersReceiveSameFrames(t *testing.T) {
	source := make(chan models.Frame, 10)
	dispatcher := NewDispatcher(source, 10)

	sub1 := dispatcher.Subscribe()
	sub2 := dispatcher.Subscribe()

	for _, seq := range []int64{1, 2, 3} {
		source <- frameSeq(seq)
	}
	close(source)

	dispatcher.Run(context.Background())

	var received1, received2 []int64
	for f := range sub1 {
		received1 = append(received1, f.Meta.Sequence)
	}
	for f := range sub2 {
		received2 = append(received2, f.Meta.Sequence)
	}

	for i, want := range []int64{1, 2, 3} {
		if received1[i] != want {
			t.Errorf("sub1 frame %d: got %d, want %d", i, received1[i], want)
		}
		if received2[i] != want {
			t.Errorf("sub2 frame %d: got %d, want %d", i, received2[i], want)
		}
	}
}

func TestDispatcher_ContextCancellation(t *testing.T) {
	source := make(chan models.Frame, 10)
	dispatcher := NewDispatcher(source, 10)

	sub := dispatcher.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(done)
	}()

	source <- frameSeq(1)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancellation")
	}

	// at most the frame sent before cancel is buffered, then the channel is closed
	_, ok := <-sub
	if ok {
		_, ok = <-sub
	}
	if ok {
		t.Error("subscriber channel should be closed after dispatcher stops")
	}
}

func TestDispatcher_BufferOverflow(t *testing.T) {
	source := make(chan models.Frame, 20)
	dispatcher := NewDispatcher(source, 2)

	var reported int
	dispatcher.OnDrop(func(n int) { reported += n })

	sub := dispatcher.Subscribe()

	for i := 0; i < 20; i++ {
		source <- frameSeq(int64(i))
	}
	close(source)

	// nobody reads sub while the dispatcher runs
	dispatcher.Run(context.Background())

	if dropped := dispatcher.Dropped(); dropped != 18 {
		t.Errorf("dropped = %d, want 18", dropped)
	}
	if reported != 18 {
		t.Errorf("OnDrop reported %d, want 18", reported)
	}

	var got []int64
	for f := range sub {
		got = append(got, f.Meta.Sequence)
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("received %v, want the first two frames", got)
	}
}

func TestDispatcher_SlowSubscriberDoesNotBlockFast(t *testing.T) {
	source := make(chan models.Frame)
	dispatcher := NewDispatcher(source, 1)

	fast := dispatcher.Subscribe()
	_ = dispatcher.Subscribe() // never read

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	for i := int64(0); i < 5; i++ {
		source <- frameSeq(i)
		select {
		case f := <-fast:
			if f.Meta.Sequence != i {
				t.Fatalf("fast subscriber got %d, want %d", f.Meta.Sequence, i)
			}
		case <-time.After(time.Second):
			t.Fatal("fast subscriber blocked by slow one")
		}
	}

	waitFor(t, func() bool { return dispatcher.Dropped() == 4 })
}

func TestDispatcher_Subscribers(t *testing.T) {
	source := make(chan models.Frame)
	dispatcher := NewDispatcher(source, 10)

	if dispatcher.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers initially, got %d", dispatcher.Subscribers())
	}

	dispatcher.Subscribe()
	if dispatcher.Subscribers() != 1 {
		t.Errorf("expected 1 subscriber, got %d", dispatcher.Subscribers())
	}

	dispatcher.Subscribe()
	if dispatcher.Subscribers() != 2 {
		t.Errorf("expected 2 subscribers, got %d", dispatcher.Subscribers())
	}

	close(source)
	dispatcher.Run(context.Background())
}
