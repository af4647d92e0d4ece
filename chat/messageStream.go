////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"encoding/json"
	"sort"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
)

// messageStream maintains the ordered message view for the single currently
// selected conversation, or the viewer's personal scratch collection when
// none is selected.
//
// The underlying subscription cannot be cancelled atomically with a
// selection change, so every snapshot carries the generation it was
// subscribed under and is dropped if the stream has moved on. Each snapshot
// replaces the visible list wholesale; replays therefore collapse to an
// identical list rather than duplicating messages.
type messageStream struct {
	docs DocumentStore

	// markSeen advances the viewer's seen high-water mark for the open
	// conversation. Invoked on open and on every snapshot that arrives
	// while the conversation is open.
	markSeen func(convKey string)

	// onUpdate receives the full sorted list after every applied snapshot.
	onUpdate func(msgs []Message)

	mux      sync.Mutex
	gen      uint64
	cancel   CancelFunc
	convKey  string // "" in personal mode
	isRoom   bool
	viewer   string
	messages []Message

	// profiles memoizes room sender profiles for the lifetime of the
	// selection. A nil entry marks a fetch in flight so an unknown sender
	// triggers exactly one lookup.
	profiles map[string]*UserProfile
}

func newMessageStream(docs DocumentStore, markSeen func(string),
	onUpdate func([]Message)) *messageStream {
	return &messageStream{
		docs:     docs,
		markSeen: markSeen,
		onUpdate: onUpdate,
		profiles: make(map[string]*UserProfile),
	}
}

// open switches the stream to the message collection at path. convKey is
// empty for personal mode. Any prior subscription is released first.
func (ms *messageStream) open(store TreeStore, path, convKey, viewer string,
	isRoom bool) {

	ms.mux.Lock()
	ms.gen++
	gen := ms.gen
	prev := ms.cancel
	ms.cancel = nil
	ms.convKey = convKey
	ms.isRoom = isRoom
	ms.viewer = viewer
	ms.messages = nil
	ms.profiles = make(map[string]*UserProfile)
	ms.mux.Unlock()

	if prev != nil {
		prev()
	}

	if convKey != "" {
		ms.markSeen(convKey)
	}

	cancel := store.Subscribe(path, func(data []byte, err error) {
		ms.handleSnapshot(gen, data, err)
	})

	ms.mux.Lock()
	if ms.gen == gen {
		ms.cancel = cancel
		ms.mux.Unlock()
		return
	}
	ms.mux.Unlock()

	// The stream was reopened while subscribing.
	cancel()
}

// close releases the current subscription and clears the view.
func (ms *messageStream) close() {
	ms.mux.Lock()
	ms.gen++
	prev := ms.cancel
	ms.cancel = nil
	ms.convKey = ""
	ms.isRoom = false
	ms.messages = nil
	ms.profiles = make(map[string]*UserProfile)
	ms.mux.Unlock()

	if prev != nil {
		prev()
	}
}

// snapshot returns a copy of the current ordered message list.
func (ms *messageStream) snapshot() []Message {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	out := make([]Message, len(ms.messages))
	copy(out, ms.messages)
	return out
}

// profile returns the memoized profile of a room sender, if resolved.
func (ms *messageStream) profile(uid string) (UserProfile, bool) {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	p := ms.profiles[uid]
	if p == nil {
		return UserProfile{}, false
	}
	return *p, true
}

func (ms *messageStream) handleSnapshot(gen uint64, data []byte, err error) {
	if err != nil {
		jww.WARN.Printf("[CB] Message subscription error: %+v", err)
		return
	}

	msgs, err := decodeMessages(data)
	if err != nil {
		jww.ERROR.Printf("[CB] Dropping malformed message snapshot: %+v", err)
		return
	}
	sortMessages(msgs)

	ms.mux.Lock()
	if ms.gen != gen {
		// Late delivery for a conversation that is no longer selected.
		ms.mux.Unlock()
		return
	}
	ms.messages = msgs
	convKey := ms.convKey

	var toFetch []string
	if ms.isRoom {
		for _, msg := range msgs {
			uid := msg.SenderID
			if uid == "" || uid == ms.viewer || uid == SystemSender {
				continue
			}
			if _, seen := ms.profiles[uid]; !seen {
				ms.profiles[uid] = nil
				toFetch = append(toFetch, uid)
			}
		}
	}
	ms.mux.Unlock()

	if convKey != "" {
		ms.markSeen(convKey)
	}

	for _, uid := range toFetch {
		go ms.fetchProfile(gen, uid)
	}

	out := make([]Message, len(msgs))
	copy(out, msgs)
	ms.onUpdate(out)
}

// fetchProfile resolves one unknown room sender from the directory. Failures
// are logged and leave the in-flight marker in place; the sender simply
// renders without a profile.
func (ms *messageStream) fetchProfile(gen uint64, uid string) {
	data, err := ms.docs.Get("users", uid)
	if err != nil {
		jww.WARN.Printf("[CB] Failed to fetch profile %s: %+v", uid, err)
		return
	}
	if data == nil {
		return
	}

	var p UserProfile
	if err = json.Unmarshal(data, &p); err != nil {
		jww.WARN.Printf("[CB] Malformed profile %s: %+v", uid, err)
		return
	}

	ms.mux.Lock()
	if ms.gen == gen {
		ms.profiles[uid] = &p
	}
	ms.mux.Unlock()
}

// decodeMessages converts a snapshot of the message collection, keyed by
// store key, into a message slice. A nil snapshot is an empty conversation.
func decodeMessages(data []byte) ([]Message, error) {
	if data == nil {
		return []Message{}, nil
	}

	var raw map[string]Message
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(raw))
	for key, msg := range raw {
		msg.StoreKey = key
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// sortMessages orders by timestamp ascending with deterministic tie-breaks
// on id and then store key, so rendering is stable even for messages minted
// in the same millisecond.
func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.StoreKey < b.StoreKey
	})
}
