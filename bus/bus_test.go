package bus

import (
	"testing"

	"go.viam.com/test"
)

func TestPublishSubscribe(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe("frames", 4)
	test.That(t, sub.ID, test.ShouldNotBeEmpty)

	b.Publish("frames", 1)
	b.Publish("frames", 2)
	b.Publish("other", 99)

	test.That(t, <-sub.C, test.ShouldEqual, 1)
	test.That(t, <-sub.C, test.ShouldEqual, 2)

	published, dropped := b.Stats()
	test.That(t, published, test.ShouldEqual, 3)
	test.That(t, dropped, test.ShouldEqual, 0)
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe("frames", 1)
	b.Publish("frames", "a")
	b.Publish("frames", "b")

	_, dropped := b.Stats()
	test.That(t, dropped, test.ShouldEqual, 1)
	test.That(t, <-sub.C, test.ShouldEqual, "a")
}

func TestMultipleSubscribers(t *testing.T) {
	b := New(nil)
	defer b.Close()

	one := b.Subscribe("depth", 2)
	two := b.Subscribe("depth", 2)
	b.Publish("depth", 7)

	test.That(t, <-one.C, test.ShouldEqual, 7)
	test.That(t, <-two.C, test.ShouldEqual, 7)
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe("frames", 1)
	b.Unsubscribe(sub)

	_, ok := <-sub.C
	test.That(t, ok, test.ShouldBeFalse)

	// Publishing after unsubscribe must not panic or count drops.
	b.Publish("frames", 1)
	_, dropped := b.Stats()
	test.That(t, dropped, test.ShouldEqual, 0)
}

func TestCloseIdempotent(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe("frames", 1)
	b.Close()
	b.Close()

	_, ok := <-sub.C
	test.That(t, ok, test.ShouldBeFalse)

	// Subscribe after close returns a closed subscription.
	late := b.Subscribe("frames", 1)
	_, ok = <-late.C
	test.That(t, ok, test.ShouldBeFalse)
}
