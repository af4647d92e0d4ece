////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Tests the unread derivation rules one conversation at a time.
func Test_unreadOf(t *testing.T) {
	const viewer, other, key = "me", "them", "me_them"

	tests := []struct {
		name     string
		meta     *ConversationMeta
		openKey  string
		expected bool
	}{
		{"no meta", nil, "", false},
		{"own last message",
			&ConversationMeta{LastMessageTimestamp: 10, LastSenderID: viewer},
			"", false},
		{"empty sender",
			&ConversationMeta{LastMessageTimestamp: 10}, "", false},
		{"newer than seen",
			&ConversationMeta{LastMessageTimestamp: 10, LastSenderID: other,
				SeenBy: map[string]int64{viewer: 5}},
			"", true},
		{"already seen",
			&ConversationMeta{LastMessageTimestamp: 10, LastSenderID: other,
				SeenBy: map[string]int64{viewer: 10}},
			"", false},
		{"never seen",
			&ConversationMeta{LastMessageTimestamp: 10, LastSenderID: other},
			"", true},
		{"currently open",
			&ConversationMeta{LastMessageTimestamp: 10, LastSenderID: other},
			key, false},
	}

	for _, tt := range tests {
		received := unreadOf(tt.meta, viewer, key, tt.openKey)
		if received != tt.expected {
			t.Errorf("Unexpected result for %q.\nexpected: %t\nreceived: %t",
				tt.name, tt.expected, received)
		}
	}
}

// Tests that the tracker aggregates across conversations and publishes only
// on changes.
func Test_unreadTracker_reconcile(t *testing.T) {
	store := NewMemoryTree()
	open := ""

	var published []bool
	ut := newUnreadTracker("me", store, func() string { return open },
		func(anyUnread bool) { published = append(published, anyUnread) })

	keys := map[string]struct{}{
		"me_alice": {},
		"me_bob":   {},
	}
	ut.reconcile(keys)
	require.Empty(t, published, "published with no unread conversations")
	require.False(t, ut.anyUnread())

	// Someone else's message arrives in one conversation.
	require.NoError(t, store.Set(metaPath("me_alice"), ConversationMeta{
		LastMessageTimestamp: 100,
		LastSenderID:         "alice",
	}))
	require.Equal(t, []bool{true}, published)
	require.True(t, ut.anyUnread())

	// The viewer catches up.
	require.NoError(t, store.Update(seenByPath("me_alice"),
		map[string]interface{}{"me": 100}))
	require.Equal(t, []bool{true, false}, published)

	// A replay of the same state publishes nothing new.
	require.NoError(t, store.Update(seenByPath("me_alice"),
		map[string]interface{}{"me": 100}))
	require.Equal(t, []bool{true, false}, published)
}

// Tests that conversations dropped from the roster release their
// subscriptions and their unread contribution.
func Test_unreadTracker_reconcile_Removal(t *testing.T) {
	store := NewMemoryTree()

	var published []bool
	ut := newUnreadTracker("me", store, func() string { return "" },
		func(anyUnread bool) { published = append(published, anyUnread) })

	ut.reconcile(map[string]struct{}{"me_alice": {}})
	require.NoError(t, store.Set(metaPath("me_alice"), ConversationMeta{
		LastMessageTimestamp: 7,
		LastSenderID:         "alice",
	}))
	require.True(t, ut.anyUnread())
	before := store.numSubscriptions()

	ut.reconcile(map[string]struct{}{})
	require.False(t, ut.anyUnread())
	require.Equal(t, before-1, store.numSubscriptions(),
		"subscription not released")
}

// Tests that opening the unread conversation clears the aggregate on
// refresh, and closing it brings the flag back.
func Test_unreadTracker_refresh(t *testing.T) {
	store := NewMemoryTree()
	open := ""

	ut := newUnreadTracker("me", store, func() string { return open },
		func(bool) {})

	ut.reconcile(map[string]struct{}{"me_alice": {}})
	require.NoError(t, store.Set(metaPath("me_alice"), ConversationMeta{
		LastMessageTimestamp: 3,
		LastSenderID:         "alice",
	}))
	require.True(t, ut.anyUnread())

	open = "me_alice"
	ut.refresh()
	require.False(t, ut.anyUnread())

	open = ""
	ut.refresh()
	require.True(t, ut.anyUnread())
}

// Tests that stop cancels every subscription.
func Test_unreadTracker_stop(t *testing.T) {
	store := NewMemoryTree()
	ut := newUnreadTracker("me", store, func() string { return "" },
		func(bool) {})

	ut.reconcile(map[string]struct{}{
		"me_alice": {}, "me_bob": {}, "room-1": {}})
	require.Equal(t, 3, store.numSubscriptions())

	ut.stop()
	require.Equal(t, 0, store.numSubscriptions())
}
