package broadcast

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHub() *Hub { return NewHub(slog.New(slog.DiscardHandler)) }

func TestPublishReachesTopicAndAll(t *testing.T) {
	h := newHub()
	urls, cancelURLs := h.Subscribe("url")
	defer cancelURLs()
	all, cancelAll := h.Subscribe(TopicAll)
	defer cancelAll()
	emails, cancelEmails := h.Subscribe("email")
	defer cancelEmails()

	h.Publish("url", Event{Type: "analysis_result", Data: []byte(`{"kind":"url"}`)})

	require.Len(t, urls, 1)
	require.Len(t, all, 1)
	assert.Empty(t, emails)
	assert.Equal(t, "analysis_result", (<-urls).Type)
	assert.JSONEq(t, `{"kind":"url"}`, string((<-all).Data))
}

func TestPublishToAllOnlyOnce(t *testing.T) {
	h := newHub()
	all, cancel := h.Subscribe(TopicAll)
	defer cancel()

	h.Publish(TopicAll, Event{Type: "stats"})
	assert.Len(t, all, 1)
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	h := newHub()
	ch, cancel := h.Subscribe("url")
	defer cancel()

	for range subscriberBuffer + 10 {
		h.Publish("url", Event{Type: "analysis_result"})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestCancel(t *testing.T) {
	h := newHub()
	ch, cancel := h.Subscribe("email")
	assert.Equal(t, 1, h.SubscriberCount("email"))

	cancel()
	cancel()
	assert.Zero(t, h.SubscriberCount("email"))
	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel is a no-op
	h.Publish("email", Event{Type: "analysis_result"})
}
