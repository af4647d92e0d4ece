////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"encoding/json"

	"github.com/google/uuid"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
)

// deleteState marks a room deletion initiated by this client, so the room
// watch can tell a deletion the viewer asked for apart from one done
// elsewhere. The distinction decides whether the close is silent or surfaced
// through ConversationEnded.
type deleteState uint8

const (
	deleteIdle deleteState = iota
	deleteInProgress
)

// CreateRoom creates a room with the viewer as owner and sole member, then
// opens it.
func (m *Manager) CreateRoom(name string) (Room, error) {
	uid := m.viewerID()
	if uid == "" {
		return Room{}, ErrNotSignedIn
	}

	room := Room{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedBy: uid,
		CreatedAt: netTime.Now().UnixMilli(),
		Members:   map[string]bool{uid: true},
	}

	if err := m.remote.Set(roomPath(room.ID), room); err != nil {
		return Room{}, err
	}

	jww.INFO.Printf("[CB] Created room %s (%q)", room.ID, name)
	return room, m.SelectRoom(room)
}

// DeleteRoom removes the room and its conversation. Owner only. The
// in-progress marker keeps the viewer's own room watch from reporting the
// disappearance as an external event.
func (m *Manager) DeleteRoom(roomID string) error {
	uid := m.viewerID()
	if uid == "" {
		return ErrNotSignedIn
	}

	room, err := m.fetchRoom(roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != uid {
		return ErrNotRoomOwner
	}

	m.mux.Lock()
	m.deleting = deleteInProgress
	m.mux.Unlock()
	defer func() {
		m.mux.Lock()
		m.deleting = deleteIdle
		m.mux.Unlock()
	}()

	if err = m.remote.Remove(conversationPath(roomID)); err != nil {
		jww.WARN.Printf("[CB] Could not remove conversation %s: %+v",
			roomID, err)
	}
	if err = m.remote.Remove(roomPath(roomID)); err != nil {
		return err
	}

	jww.INFO.Printf("[CB] Deleted room %s", roomID)

	if m.cur.Key() == roomID {
		m.CloseConversation()
	}
	return nil
}

// LeaveRoom removes the viewer from the room's member set and posts a
// departure notice. The owner cannot leave; they delete instead.
func (m *Manager) LeaveRoom(roomID string) error {
	uid := m.viewerID()
	if uid == "" {
		return ErrNotSignedIn
	}

	room, err := m.fetchRoom(roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy == uid {
		return ErrRoomOwnerCannotLeave
	}

	// Close before dropping membership, or the viewer's own room watch
	// would report the voluntary leave as a removal.
	if m.cur.Key() == roomID {
		m.CloseConversation()
	}

	err = m.remote.Remove(roomMembersPath(roomID) + "/" + uid)
	if err != nil {
		return err
	}

	var name string
	if p, ok := m.Profile(); ok {
		name = p.Name()
	}
	m.sendSystemMessage(roomID, name+" left the room")
	return nil
}

// RemoveMember removes another member from the room and posts a notice.
// Owner only; the member's own room watch turns the removal into a forced
// close on their side.
func (m *Manager) RemoveMember(roomID string, member UserProfile) error {
	uid := m.viewerID()
	if uid == "" {
		return ErrNotSignedIn
	}

	room, err := m.fetchRoom(roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != uid {
		return ErrNotRoomOwner
	}
	if member.UID == uid {
		return ErrRoomOwnerCannotLeave
	}

	err = m.remote.Remove(roomMembersPath(roomID) + "/" + member.UID)
	if err != nil {
		return err
	}

	m.sendSystemMessage(roomID, member.Name()+" was removed from the room")
	return nil
}

// InviteToRoom records a pending invitation for the invitee. Duplicate
// invites simply overwrite the previous record.
func (m *Manager) InviteToRoom(roomID string, invitee UserProfile) error {
	uid := m.viewerID()
	if uid == "" {
		return ErrNotSignedIn
	}

	room, err := m.fetchRoom(roomID)
	if err != nil {
		return err
	}

	var inviter string
	if p, ok := m.Profile(); ok {
		inviter = p.Name()
	}

	invite := Invitation{
		RoomID:    roomID,
		RoomName:  room.Name,
		InvitedBy: inviter,
		Timestamp: netTime.Now().UnixMilli(),
	}
	return m.remote.Set(invitationPath(invitee.UID, roomID), invite)
}

// fetchRoom reads a room record. A missing room is ErrRoomGone.
func (m *Manager) fetchRoom(roomID string) (Room, error) {
	data, err := m.remote.Get(roomPath(roomID))
	if err != nil {
		return Room{}, err
	}
	if data == nil {
		return Room{}, ErrRoomGone
	}

	room, err := decodeRoom(roomID, data)
	if err != nil {
		return Room{}, err
	}
	return room, nil
}

// decodeRoom parses a room record, stamping the store key as the id.
func decodeRoom(roomID string, data []byte) (Room, error) {
	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return Room{}, err
	}
	room.ID = roomID
	return room, nil
}

// watchRoom subscribes to the room record of the open room so deletion and
// membership loss close the conversation promptly.
func (m *Manager) watchRoom(roomID string) {
	m.cancelRoomWatch()

	cancel := m.remote.Subscribe(roomPath(roomID),
		func(data []byte, err error) {
			m.handleRoomEvent(roomID, data, err)
		})

	m.mux.Lock()
	m.roomWatch = cancel
	m.mux.Unlock()
}

func (m *Manager) cancelRoomWatch() {
	m.mux.Lock()
	cancel := m.roomWatch
	m.roomWatch = nil
	m.mux.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (m *Manager) handleRoomEvent(roomID string, data []byte, err error) {
	if err != nil {
		jww.WARN.Printf("[CB] Room watch error for %s: %+v", roomID, err)
		return
	}
	if m.cur.Key() != roomID {
		return
	}

	if data == nil {
		m.mux.Lock()
		selfInflicted := m.deleting == deleteInProgress
		m.mux.Unlock()
		if selfInflicted {
			// DeleteRoom closes the conversation itself.
			return
		}
		m.forceClose(roomID, ErrRoomGone)
		return
	}

	room, err := decodeRoom(roomID, data)
	if err != nil {
		jww.ERROR.Printf("[CB] Malformed room record %s: %+v", roomID, err)
		return
	}

	if uid := m.viewerID(); uid != "" && !room.IsMember(uid) {
		m.forceClose(roomID, ErrRemovedFromRoom)
		return
	}

	m.cur.updateRoom(room)
}

// forceClose ends the open conversation in response to an external event and
// tells the UI why.
func (m *Manager) forceClose(key string, reason error) {
	jww.INFO.Printf("[CB] Conversation %s force-closed: %s", key, reason)

	m.cancelRoomWatch()
	m.cur.set(convNone, "", UserProfile{}, Room{})
	m.reopenStream()
	m.cb.ConversationEnded(key, reason)
}
