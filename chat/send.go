////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"strconv"
	"strings"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
)

// languagePair tracks the session's two working languages. The pair adapts
// to what the speakers actually use: when a detected language matches one
// side it swaps roles as needed, and when it matches neither the source is
// re-anchored while the target stays put.
type languagePair struct {
	source string
	target string
}

// observe folds a detected language into the pair.
func (lp *languagePair) observe(detected string) {
	switch detected {
	case "", lp.source:
	case lp.target:
		lp.source, lp.target = lp.target, lp.source
	default:
		lp.source = detected
	}
}

// SendText translates text and commits the resulting original/translation
// pair to the active conversation. A failed translation degrades to sending
// the original alone; SendText itself only fails when the store write fails.
func (m *Manager) SendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mux.Lock()
	target := ""
	if m.user == nil {
		target = m.guestTarget
	}
	m.mux.Unlock()

	tr, err := m.translator.TranslateText(text, target)
	if err != nil {
		jww.WARN.Printf("[CB] Translation failed, sending original only: %+v",
			err)
		return m.sendFallback(text)
	}

	return m.commitUtterance(text, tr, target)
}

// sendFallback commits a lone original message in the pair's current source
// language. Used when translation is unavailable so the turn is never lost.
func (m *Manager) sendFallback(text string) error {
	m.mux.Lock()
	source := m.pair.source
	m.mux.Unlock()

	ts := netTime.Now().UnixMilli()
	_, uid := m.sessionStore()

	orig := Message{
		ID:         strconv.FormatInt(ts, 10),
		Text:       text,
		IsOriginal: true,
		Language:   source,
		Timestamp:  ts,
		SenderID:   uid,
	}
	return m.commitPair(orig, nil)
}

// commitUtterance builds the original/translation pair from a translation
// result and writes it. The original is stamped at t and the translation at
// t+1 so they always render adjacently in detection order. When the session
// asked the translator for an explicit target that target is the translation
// turn's language; the working pair only decides it in toggle mode.
func (m *Manager) commitUtterance(
	original string, tr *Translation, target string) error {
	m.mux.Lock()
	m.pair.observe(tr.DetectedSource)
	m.mux.Unlock()

	ts := netTime.Now().UnixMilli()
	_, uid := m.sessionStore()

	orig := Message{
		ID:         strconv.FormatInt(ts, 10),
		Text:       original,
		IsOriginal: true,
		Language:   tr.DetectedSource,
		Timestamp:  ts,
		SenderID:   uid,
	}

	var trans *Message
	if tr.TranslatedText != "" {
		transLang := target
		if transLang == "" {
			transLang = m.translationLanguage(tr.DetectedSource)
		}
		trans = &Message{
			ID:         strconv.FormatInt(ts+1, 10),
			Text:       tr.TranslatedText,
			IsOriginal: false,
			Language:   transLang,
			Timestamp:  ts + 1,
			SenderID:   uid,
		}
	}

	return m.commitPair(orig, trans)
}

// translationLanguage returns the language the translation of an utterance
// detected as source is in: the other side of the working pair.
func (m *Manager) translationLanguage(source string) string {
	m.mux.Lock()
	defer m.mux.Unlock()
	if source == m.pair.target {
		return m.pair.source
	}
	return m.pair.target
}

// commitPair writes the messages to the session's active collection and, for
// shared conversations, advances the conversation meta in the same turn.
// Meta is written first so a reader that sees the new messages also sees a
// meta at least as new.
func (m *Manager) commitPair(orig Message, trans *Message) error {
	store, uid := m.sessionStore()
	kind, key, _, _ := m.cur.get()

	var path string
	switch {
	case kind != convNone:
		path = messagesPath(key)

		last := orig.Timestamp
		if trans != nil {
			last = trans.Timestamp
		}
		err := store.Update(metaPath(key), map[string]interface{}{
			"lastMessageTimestamp": last,
			"lastSenderId":         uid,
			"seenBy/" + uid:        last,
		})
		if err != nil {
			jww.WARN.Printf("[CB] Could not advance meta for %s: %+v",
				key, err)
		}
	default:
		path = personalMessagesPath(uid)
	}

	if _, err := store.Push(path, orig); err != nil {
		return err
	}
	if trans != nil {
		if _, err := store.Push(path, *trans); err != nil {
			return err
		}
	}

	// Guest sessions have no settle window; the translation plays as soon
	// as it is committed and is marked so the snapshot cannot replay it.
	if uid == guestUID && trans != nil && m.currentAutoPlay() {
		m.pc.markPlayed(trans.ID)
		m.pc.play(*trans)
	}

	return nil
}

func (m *Manager) currentAutoPlay() bool {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.settings.AutoPlay
}

// sendSystemMessage commits an unpaired system-attributed notice to the
// conversation at key.
func (m *Manager) sendSystemMessage(key, text string) {
	ts := netTime.Now().UnixMilli()
	msg := Message{
		ID:        strconv.FormatInt(ts, 10),
		Text:      text,
		Timestamp: ts,
		SenderID:  SystemSender,
	}
	if _, err := m.remote.Push(messagesPath(key), msg); err != nil {
		jww.WARN.Printf("[CB] Could not post system message to %s: %+v",
			key, err)
	}
}
