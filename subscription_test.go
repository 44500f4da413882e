package goKeeper

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	d := newEventDispatcher(EventsConfig{BufferSize: 8})
	collector := &eventCollector{}
	d.subscribe(collector.listener())

	now := time.Now()
	d.emit(Event{Kind: EventCreated, At: now})
	d.emit(Event{Kind: EventRefreshed, At: now})
	d.emit(Event{Kind: EventCleared, At: now})
	d.Close()

	kinds := collector.kinds()
	want := []EventKind{EventCreated, EventRefreshed, EventCleared}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d out of order: got %v, want %v", i, kinds, want)
		}
	}
}

func TestDispatcherUnsubscribe(t *testing.T) {
	d := newEventDispatcher(EventsConfig{BufferSize: 8})

	delivered := make(chan EventKind, 8)
	unsubscribe := d.subscribe(func(e Event) {
		delivered <- e.Kind
	})

	d.emit(Event{Kind: EventCreated, At: time.Now()})

	select {
	case kind := <-delivered:
		if kind != EventCreated {
			t.Fatalf("got %v, want created", kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first event never delivered")
	}

	unsubscribe()
	// Unsubscribing twice is harmless.
	unsubscribe()

	d.emit(Event{Kind: EventCleared, At: time.Now()})
	d.Close()

	select {
	case kind := <-delivered:
		t.Fatalf("received %v after unsubscribe", kind)
	default:
	}
}

func TestDispatcherPanicIsolation(t *testing.T) {
	d := newEventDispatcher(EventsConfig{BufferSize: 8})

	d.subscribe(func(Event) {
		panic("listener misbehaving")
	})
	collector := &eventCollector{}
	d.subscribe(collector.listener())

	d.emit(Event{Kind: EventCreated, At: time.Now()})
	d.emit(Event{Kind: EventRefreshed, At: time.Now()})
	d.Close()

	kinds := collector.kinds()
	if len(kinds) != 2 {
		t.Fatalf("panicking sibling must not block delivery, got %v", kinds)
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	d := newEventDispatcher(EventsConfig{BufferSize: 1, DropIfFull: true})

	started := make(chan struct{})
	release := make(chan struct{})
	var once bool
	d.subscribe(func(Event) {
		if !once {
			once = true
			close(started)
			<-release
		}
	})

	// First event is dequeued and blocks inside the listener.
	d.emit(Event{Kind: EventCreated, At: time.Now()})
	<-started

	// Second fills the buffer; the rest overflow and are counted.
	d.emit(Event{Kind: EventRefreshed, At: time.Now()})
	d.emit(Event{Kind: EventExpired, At: time.Now()})
	d.emit(Event{Kind: EventCleared, At: time.Now()})

	if got := d.Dropped(); got != 2 {
		t.Fatalf("expected 2 dropped events, got %d", got)
	}

	close(release)
	d.Close()
}

func TestDispatcherEmitAfterCloseIsNoop(t *testing.T) {
	d := newEventDispatcher(EventsConfig{BufferSize: 1})
	collector := &eventCollector{}
	d.subscribe(collector.listener())
	d.Close()

	d.emit(Event{Kind: EventCreated, At: time.Now()})
	if got := collector.kinds(); len(got) != 0 {
		t.Fatalf("emit after close must be a no-op, got %v", got)
	}
}

func TestManagerStateTransitionsObserved(t *testing.T) {
	renewed := Credential{
		AccessToken:  "access-token-2",
		RefreshToken: "refresh-token-2",
		ExpiresAt:    time.Now().Add(2 * time.Hour),
		SubjectID:    "user-1",
	}
	exec := &scriptedExecutor{results: []scriptedResult{{cred: renewed}}}
	collector := &eventCollector{}
	m := newTestManager(t, fastRetryConfig(), exec)
	m.OnStateChange(collector.listener())

	ctx := context.Background()
	if err := m.SetCredential(ctx, testCredential(time.Now(), time.Hour)); err != nil {
		t.Fatalf("set credential: %v", err)
	}
	if _, err := m.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}

	m.Close()

	kinds := collector.kinds()
	want := []EventKind{EventCreated, EventRefreshed, EventCleared}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("transition %d: got %v, want %v", i, kinds, want)
		}
	}
}
