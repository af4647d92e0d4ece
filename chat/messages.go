////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"strings"

	jww "github.com/spf13/jwalterweatherman"
)

// EditMessage replaces the text of a message the viewer sent. Only the
// original side of a pair is editable; the stale translation is left in
// place rather than re-translated.
func (m *Manager) EditMessage(id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return m.DeleteMessage(id)
	}

	msg, err := m.findMessage(id)
	if err != nil {
		return err
	}

	_, uid := m.sessionStore()
	if msg.SenderID != uid {
		return ErrNotMessageSender
	}
	if !msg.IsOriginal {
		return ErrNotOriginalTurn
	}

	store, _ := m.sessionStore()
	path := m.activeMessagesPath()
	return store.Update(path+"/"+msg.StoreKey,
		map[string]interface{}{"text": text})
}

// DeleteMessage removes a message the viewer sent. Each side of a pair is
// deleted independently.
func (m *Manager) DeleteMessage(id string) error {
	msg, err := m.findMessage(id)
	if err != nil {
		return err
	}

	store, uid := m.sessionStore()
	if msg.SenderID != uid {
		return ErrNotMessageSender
	}

	path := m.activeMessagesPath()
	return store.Remove(path + "/" + msg.StoreKey)
}

// ClearConversation wipes the message history of the active conversation.
// Direct conversations drop their meta too so the unread state resets; rooms
// keep theirs, since other members' seen marks are not the viewer's to
// discard.
func (m *Manager) ClearConversation() error {
	store, uid := m.sessionStore()
	kind, key, _, _ := m.cur.get()

	switch kind {
	case convDirect:
		if err := store.Remove(messagesPath(key)); err != nil {
			return err
		}
		if err := store.Remove(metaPath(key)); err != nil {
			jww.WARN.Printf("[CB] Could not clear meta for %s: %+v",
				key, err)
		}
		return nil
	case convRoom:
		return store.Remove(messagesPath(key))
	default:
		return store.Remove(personalMessagesPath(uid))
	}
}

// findMessage locates a message by id in the current snapshot.
func (m *Manager) findMessage(id string) (Message, error) {
	for _, msg := range m.stream.snapshot() {
		if msg.ID == id {
			if msg.StoreKey == "" {
				return Message{}, ErrMessageNotFound
			}
			return msg, nil
		}
	}
	return Message{}, ErrMessageNotFound
}

// activeMessagesPath returns the store path of the collection the active
// view is reading.
func (m *Manager) activeMessagesPath() string {
	kind, key, _, _ := m.cur.get()
	if kind != convNone {
		return messagesPath(key)
	}
	_, uid := m.sessionStore()
	return personalMessagesPath(uid)
}

// RenderFor returns the render verdict of msg for the signed-in viewer in
// the current conversation mode.
func (m *Manager) RenderFor(msg Message) RenderVerdict {
	kind, _, _, _ := m.cur.get()

	m.mux.Lock()
	native := m.settings.NativeLanguage
	m.mux.Unlock()
	if native == "" {
		native = DefaultSettings().NativeLanguage
	}

	return DecideRender(msg, m.viewerID(), kind != convNone, native)
}
