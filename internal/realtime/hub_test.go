package realtime

import (
	"testing"

	"github.com/google/uuid"
)

func TestBroadcastReachesSubscribedClients(t *testing.T) {
	hub := NewSSEHub(testLogger(t))
	convID := uuid.New()
	channel := ConversationChannel(convID)

	sub := hub.NewSSEClient(uuid.New())
	other := hub.NewSSEClient(uuid.New())
	hub.AddChannel(sub, channel)
	hub.AddChannel(other, "conversation:"+uuid.New().String())

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventMessageDelta, Data: "hola"})

	select {
	case msg := <-sub.Outbound:
		if msg.Event != SSEEventMessageDelta {
			t.Fatalf("event = %q", msg.Event)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}
	select {
	case msg := <-other.Outbound:
		t.Fatalf("unsubscribed client received %+v", msg)
	default:
	}
}

func TestBroadcastPreservesOrder(t *testing.T) {
	hub := NewSSEHub(testLogger(t))
	channel := ConversationChannel(uuid.New())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)

	events := []SSEEvent{
		SSEEventMessageCreated,
		SSEEventMessageDelta,
		SSEEventArtifactAdded,
		SSEEventIterationCreated,
		SSEEventMessageDone,
	}
	for _, ev := range events {
		hub.Broadcast(SSEMessage{Channel: channel, Event: ev})
	}
	for i, want := range events {
		got := <-client.Outbound
		if got.Event != want {
			t.Fatalf("event %d = %q, want %q", i, got.Event, want)
		}
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(testLogger(t))
	channel := ConversationChannel(uuid.New())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)

	// Nothing drains Outbound; overflow must not block the broadcaster.
	for i := 0; i < cap(client.Outbound)+10; i++ {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventMessageDelta})
	}
	if len(client.Outbound) != cap(client.Outbound) {
		t.Fatalf("outbound len = %d, want full buffer %d", len(client.Outbound), cap(client.Outbound))
	}
}

func TestRemoveChannelStopsDelivery(t *testing.T) {
	hub := NewSSEHub(testLogger(t))
	channel := ConversationChannel(uuid.New())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)
	hub.RemoveChannel(client, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventMessageDone})
	select {
	case msg := <-client.Outbound:
		t.Fatalf("removed client received %+v", msg)
	default:
	}
}

func TestCloseClientUnsubscribesEverywhere(t *testing.T) {
	hub := NewSSEHub(testLogger(t))
	a := ConversationChannel(uuid.New())
	b := ConversationChannel(uuid.New())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, a)
	hub.AddChannel(client, b)

	hub.CloseClient(client)

	// Broadcasting after close must not panic on the closed channel.
	hub.Broadcast(SSEMessage{Channel: a, Event: SSEEventMessageDone})
	hub.Broadcast(SSEMessage{Channel: b, Event: SSEEventMessageDone})

	if len(client.Channels) != 0 {
		t.Fatalf("client still subscribed to %v", client.Channels)
	}
}
