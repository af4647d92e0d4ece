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

	jww "github.com/spf13/jwalterweatherman"
)

// Invitations returns the viewer's pending room invitations, newest first.
func (m *Manager) Invitations() []Invitation {
	m.mux.Lock()
	defer m.mux.Unlock()
	out := make([]Invitation, len(m.invites))
	copy(out, m.invites)
	return out
}

// AcceptInvitation joins the invited room, consumes the invitation, posts a
// join notice, and opens the room.
func (m *Manager) AcceptInvitation(invite Invitation) error {
	uid := m.viewerID()
	if uid == "" {
		return ErrNotSignedIn
	}

	err := m.remote.Update(roomMembersPath(invite.RoomID),
		map[string]interface{}{uid: true})
	if err != nil {
		return err
	}

	if err = m.remote.Remove(
		invitationPath(uid, invite.RoomID)); err != nil {
		jww.WARN.Printf("[CB] Could not consume invitation %s: %+v",
			invite.RoomID, err)
	}

	var name string
	if p, ok := m.Profile(); ok {
		name = p.Name()
	}
	m.sendSystemMessage(invite.RoomID, name+" joined the room")

	room, err := m.fetchRoom(invite.RoomID)
	if err != nil {
		// Joined but cannot load the record; the room list subscription
		// will surface it shortly.
		jww.WARN.Printf("[CB] Joined %s but could not load it: %+v",
			invite.RoomID, err)
		return nil
	}
	return m.SelectRoom(room)
}

// DeclineInvitation discards the invitation without joining.
func (m *Manager) DeclineInvitation(invite Invitation) error {
	uid := m.viewerID()
	if uid == "" {
		return ErrNotSignedIn
	}
	return m.remote.Remove(invitationPath(uid, invite.RoomID))
}

// handleInvitations ingests the viewer's invitation subtree, keyed by room
// id.
func (m *Manager) handleInvitations(data []byte, err error) {
	if err != nil {
		jww.WARN.Printf("[CB] Invitation subscription error: %+v", err)
		return
	}

	raw := make(map[string]Invitation)
	if data != nil {
		if err = json.Unmarshal(data, &raw); err != nil {
			jww.WARN.Printf("[CB] Malformed invitation feed: %+v", err)
			return
		}
	}

	list := make([]Invitation, 0, len(raw))
	for roomID, invite := range raw {
		invite.RoomID = roomID
		list = append(list, invite)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Timestamp > list[j].Timestamp
	})

	m.mux.Lock()
	m.invites = list
	m.mux.Unlock()

	m.cb.InvitationUpdate(list)
}
