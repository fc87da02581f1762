package pod

import (
	"testing"
	"time"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := newBroadcaster()
	_, ch1 := b.subscribe(4)
	_, ch2 := b.subscribe(4)

	b.send([]byte("hi"))

	for _, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case got := <-ch:
			if string(got) != "hi" {
				t.Errorf("got %q", got)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	b := newBroadcaster()
	id, ch := b.subscribe(1)
	b.unsubscribe(id)

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
	if b.count() != 0 {
		t.Errorf("count = %d, want 0", b.count())
	}
}

func TestBroadcasterDropsSlowConsumer(t *testing.T) {
	b := newBroadcaster()
	_, ch := b.subscribe(1)
	b.send([]byte("one"))
	b.send([]byte("two")) // channel full, dropped rather than blocking

	got := <-ch
	if string(got) != "one" {
		t.Errorf("got %q, want first message preserved", got)
	}
}
