////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// Tests that Subscribe delivers the current value before returning, then
// again after every mutation below the subscribed path.
func TestMemoryTree_Subscribe(t *testing.T) {
	mt := NewMemoryTree()
	require.NoError(t, mt.Set("chats/a_b/messages/k1",
		Message{ID: "1", Text: "hi"}))

	var snapshots [][]byte
	cancel := mt.Subscribe("chats/a_b/messages",
		func(data []byte, err error) {
			require.NoError(t, err)
			snapshots = append(snapshots, data)
		})

	require.Len(t, snapshots, 1, "no initial delivery")
	require.NotNil(t, snapshots[0])

	require.NoError(t, mt.Set("chats/a_b/messages/k2",
		Message{ID: "2", Text: "yo"}))
	require.Len(t, snapshots, 2)

	var msgs map[string]Message
	require.NoError(t, json.Unmarshal(snapshots[1], &msgs))
	require.Len(t, msgs, 2)

	// Mutations on unrelated paths must not notify.
	require.NoError(t, mt.Set("chats/c_d/messages/k1",
		Message{ID: "3"}))
	require.Len(t, snapshots, 2)

	cancel()
	require.NoError(t, mt.Set("chats/a_b/messages/k3", Message{ID: "4"}))
	require.Len(t, snapshots, 2, "delivery after cancel")
	require.Equal(t, 0, mt.numSubscriptions())
}

// Tests that a subscription on a missing path receives nil initially and the
// value once it appears.
func TestMemoryTree_Subscribe_MissingPath(t *testing.T) {
	mt := NewMemoryTree()

	var snapshots [][]byte
	mt.Subscribe("chats/a_b/meta", func(data []byte, err error) {
		require.NoError(t, err)
		snapshots = append(snapshots, data)
	})

	require.Len(t, snapshots, 1)
	require.Nil(t, snapshots[0])

	require.NoError(t, mt.Set("chats/a_b/meta",
		ConversationMeta{LastMessageTimestamp: 5}))
	require.Len(t, snapshots, 2)
	require.NotNil(t, snapshots[1])
}

// Tests that Push generates distinct keys and stores each value under its
// own key.
func TestMemoryTree_Push(t *testing.T) {
	mt := NewMemoryTree()

	k1, err := mt.Push("users/guest/messages", Message{ID: "1"})
	require.NoError(t, err)
	k2, err := mt.Push("users/guest/messages", Message{ID: "2"})
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)

	data, err := mt.Get("users/guest/messages/" + k1)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "1", msg.ID)
}

// Tests that Update applies slash-nested field names and notifies exactly
// once for the batch.
func TestMemoryTree_Update(t *testing.T) {
	mt := NewMemoryTree()
	require.NoError(t, mt.Set("chats/a_b/meta", ConversationMeta{
		LastMessageTimestamp: 1,
		LastSenderID:         "a",
	}))

	deliveries := 0
	mt.Subscribe("chats/a_b/meta", func([]byte, error) { deliveries++ })
	require.Equal(t, 1, deliveries)

	err := mt.Update("chats/a_b/meta", map[string]interface{}{
		"lastMessageTimestamp": 9,
		"lastSenderId":         "b",
		"seenBy/b":             9,
	})
	require.NoError(t, err)
	require.Equal(t, 2, deliveries, "batched update notified more than once")

	data, err := mt.Get("chats/a_b/meta")
	require.NoError(t, err)
	var meta ConversationMeta
	require.NoError(t, json.Unmarshal(data, &meta))
	require.Equal(t, int64(9), meta.LastMessageTimestamp)
	require.Equal(t, "b", meta.LastSenderID)
	require.Equal(t, int64(9), meta.SeenBy["b"])
}

// Tests that Remove deletes the subtree and reports nil to subscribers.
func TestMemoryTree_Remove(t *testing.T) {
	mt := NewMemoryTree()
	require.NoError(t, mt.Set("chatRooms/r1", Room{ID: "r1", Name: "room"}))

	var last []byte
	mt.Subscribe("chatRooms/r1", func(data []byte, _ error) { last = data })
	require.NotNil(t, last)

	require.NoError(t, mt.Remove("chatRooms/r1"))
	require.Nil(t, last)

	data, err := mt.Get("chatRooms/r1")
	require.NoError(t, err)
	require.Nil(t, data)
}

// Tests that a callback can mutate the store without deadlocking; delivery
// happens outside the store lock.
func TestMemoryTree_ReentrantCallback(t *testing.T) {
	mt := NewMemoryTree()

	first := true
	mt.Subscribe("a", func(data []byte, _ error) {
		if first {
			first = false
			require.NoError(t, mt.Set("b", 1))
		}
	})

	require.NoError(t, mt.Set("a", 1))
}
