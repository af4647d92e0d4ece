////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"encoding/json"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
)

// unreadTracker keeps one live meta subscription per known conversation and
// publishes the OR-reduction of their unread flags. The roster of known
// conversations (every other user plus every room the viewer belongs to) is
// open-ended and changes at runtime; reconcile performs a set-difference pass
// so that removed entries always release their subscription.
type unreadTracker struct {
	viewer string
	store  TreeStore

	// openConv returns the currently open conversation key, or "". It is
	// consulted at evaluation time rather than cached, so long-lived
	// subscriptions never act on a stale selection.
	openConv func() string

	// publish receives the aggregate whenever its value changes.
	publish func(anyUnread bool)

	mux       sync.Mutex
	subs      map[string]CancelFunc
	meta      map[string]*ConversationMeta
	status    map[string]bool
	aggregate bool
}

func newUnreadTracker(viewer string, store TreeStore, openConv func() string,
	publish func(bool)) *unreadTracker {
	return &unreadTracker{
		viewer:   viewer,
		store:    store,
		openConv: openConv,
		publish:  publish,
		subs:     make(map[string]CancelFunc),
		meta:     make(map[string]*ConversationMeta),
		status:   make(map[string]bool),
	}
}

// reconcile brings the subscription registry in line with the given roster:
// conversations no longer in the roster are cancelled and dropped,
// conversations not yet tracked are subscribed.
func (ut *unreadTracker) reconcile(keys map[string]struct{}) {
	ut.mux.Lock()
	var toCancel []CancelFunc
	for key, cancel := range ut.subs {
		if _, keep := keys[key]; !keep {
			toCancel = append(toCancel, cancel)
			delete(ut.subs, key)
			delete(ut.meta, key)
			delete(ut.status, key)
		}
	}
	var toAdd []string
	for key := range keys {
		if _, tracked := ut.subs[key]; !tracked {
			// Placeholder claims the key so overlapping reconcile
			// passes cannot double-subscribe.
			ut.subs[key] = nil
			toAdd = append(toAdd, key)
		}
	}
	ut.mux.Unlock()

	for _, cancel := range toCancel {
		if cancel != nil {
			cancel()
		}
	}

	for _, key := range toAdd {
		k := key
		cancel := ut.store.Subscribe(metaPath(k),
			func(data []byte, err error) { ut.handleMeta(k, data, err) })

		ut.mux.Lock()
		if _, tracked := ut.subs[k]; tracked {
			ut.subs[k] = cancel
			ut.mux.Unlock()
		} else {
			// Removed again while we were subscribing.
			ut.mux.Unlock()
			cancel()
		}
	}

	ut.publishIfChanged()
}

// handleMeta ingests one meta snapshot. Store errors leave the previous
// status in place; they are never allowed to crash the aggregate.
func (ut *unreadTracker) handleMeta(key string, data []byte, err error) {
	if err != nil {
		jww.WARN.Printf("[CB] Unread meta subscription error for %s: %+v",
			key, err)
		return
	}

	var meta *ConversationMeta
	if data != nil {
		meta = &ConversationMeta{}
		if err = json.Unmarshal(data, meta); err != nil {
			jww.WARN.Printf("[CB] Malformed meta for %s: %+v", key, err)
			return
		}
	}

	open := ut.openConv()

	ut.mux.Lock()
	if _, tracked := ut.subs[key]; !tracked {
		ut.mux.Unlock()
		return
	}
	ut.meta[key] = meta
	ut.status[key] = unreadOf(meta, ut.viewer, key, open)
	ut.mux.Unlock()

	ut.publishIfChanged()
}

// refresh re-evaluates every conversation against the current selection.
// Called on selection changes so that opening a conversation immediately
// forces its unread flag to false without waiting for a meta event.
func (ut *unreadTracker) refresh() {
	open := ut.openConv()

	ut.mux.Lock()
	for key, meta := range ut.meta {
		ut.status[key] = unreadOf(meta, ut.viewer, key, open)
	}
	ut.mux.Unlock()

	ut.publishIfChanged()
}

// anyUnread returns the current aggregate.
func (ut *unreadTracker) anyUnread() bool {
	ut.mux.Lock()
	defer ut.mux.Unlock()
	return ut.aggregate
}

// stop releases every subscription.
func (ut *unreadTracker) stop() {
	ut.mux.Lock()
	var toCancel []CancelFunc
	for _, cancel := range ut.subs {
		if cancel != nil {
			toCancel = append(toCancel, cancel)
		}
	}
	ut.subs = make(map[string]CancelFunc)
	ut.meta = make(map[string]*ConversationMeta)
	ut.status = make(map[string]bool)
	ut.mux.Unlock()

	for _, cancel := range toCancel {
		cancel()
	}

	ut.publishIfChanged()
}

func (ut *unreadTracker) publishIfChanged() {
	ut.mux.Lock()
	agg := false
	for _, unread := range ut.status {
		if unread {
			agg = true
			break
		}
	}
	changed := agg != ut.aggregate
	ut.aggregate = agg
	ut.mux.Unlock()

	if changed {
		ut.publish(agg)
	}
}

// unreadOf derives the unread flag for one conversation. A conversation is
// unread when someone else sent its latest message after the viewer's seen
// high-water mark, unless the conversation is the one currently open. A
// conversation with no meta yet is never unread.
func unreadOf(meta *ConversationMeta, viewer, key, openKey string) bool {
	if meta == nil || key == openKey {
		return false
	}
	if meta.LastSenderID == "" || meta.LastSenderID == viewer {
		return false
	}
	return meta.LastMessageTimestamp > meta.SeenBy[viewer]
}
