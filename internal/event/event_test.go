package event

import "testing"

func TestTriggerCallsAllSubscribers(t *testing.T) {
	b := New()
	var a, c int
	b.Register(ClearCache, func() { a++ })
	b.Register(ClearCache, func() { c++ })

	b.Trigger(ClearCache)
	b.Trigger(ClearCache)

	if a != 2 || c != 2 {
		t.Fatalf("expected both subscribers called twice, got a=%d c=%d", a, c)
	}
}

func TestTriggerUnknownTopicIsNoop(t *testing.T) {
	b := New()
	b.Trigger(Name("nope")) // must not panic
}
