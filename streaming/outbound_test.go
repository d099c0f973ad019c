package streaming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

func TestOutboundAssignsMonotonicIDsAndEmitsFin(t *testing.T) {
	o := NewOutbound[string](8)
	send := make(chan string, 4)
	o.Register(42, send)

	send <- "a"
	send <- "b"
	close(send)

	var got []StreamMessage[string]
	for i := 0; i < 3; i++ {
		select {
		case msg := <-o.Messages():
			got = append(got, msg)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}

	require.Equal(t, ids.StreamId(42), got[0].StreamID)
	require.Equal(t, ids.MessageId(0), got[0].MessageID)
	require.Equal(t, "a", got[0].Body.Content)

	require.Equal(t, ids.MessageId(1), got[1].MessageID)
	require.Equal(t, "b", got[1].Body.Content)

	require.True(t, got[2].Body.IsFin)
	require.Equal(t, ids.MessageId(2), got[2].MessageID)
}

func TestOutboundInterleavesMultipleStreams(t *testing.T) {
	o := NewOutbound[int](16)
	a := make(chan int, 4)
	b := make(chan int, 4)
	o.Register(1, a)
	o.Register(2, b)

	a <- 10
	b <- 20
	close(a)
	close(b)

	seen := map[ids.StreamId]int{}
	fins := map[ids.StreamId]bool{}
	for i := 0; i < 4; i++ {
		select {
		case msg := <-o.Messages():
			if msg.Body.IsFin {
				fins[msg.StreamID] = true
			} else {
				seen[msg.StreamID]++
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
	require.Equal(t, 1, seen[ids.StreamId(1)])
	require.Equal(t, 1, seen[ids.StreamId(2)])
	require.True(t, fins[ids.StreamId(1)])
	require.True(t, fins[ids.StreamId(2)])
}
