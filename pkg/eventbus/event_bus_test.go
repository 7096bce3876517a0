package eventbus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type renamed struct {
	ID int64
}

func TestPublish_DispatchesToMatchingSubscriber(t *testing.T) {
	bus := NewEventPublisher(logrus.New())

	var got []*renamed
	bus.Subscribe(func(ev *renamed) {
		got = append(got, ev)
	})

	bus.Publish(&renamed{ID: 1})
	bus.Publish("ignored by the typed handler")

	require.Len(t, got, 1)
	require.Equal(t, int64(1), got[0].ID)
}

func TestPublish_SurvivesPanickingSubscriber(t *testing.T) {
	bus := NewEventPublisher(logrus.New())

	var calls int
	bus.Subscribe(func(ev *renamed) { panic("boom") })
	bus.Subscribe(func(ev *renamed) { calls++ })

	require.NotPanics(t, func() {
		bus.Publish(&renamed{ID: 2})
	})
	require.Equal(t, 1, calls)
}

func TestUnsubscribe_RemovesHandler(t *testing.T) {
	bus := NewEventPublisher(logrus.New())

	var calls int
	handler := func(ev *renamed) { calls++ }
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Unsubscribe(handler)
	require.Equal(t, 0, bus.SubscribersCount())

	bus.Publish(&renamed{ID: 3})
	require.Equal(t, 0, calls)
}
