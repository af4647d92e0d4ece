////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

// SystemSender is the sentinel sender id for server-authored notices. System
// messages render as centered notices and never trigger playback.
const SystemSender = "SYSTEM"

// Message is one turn of a conversation. Utterances are stored as pairs: an
// original turn carrying the sender's own words and a translation turn
// carrying the machine translation, at adjacent timestamps so they sort
// together.
//
// ID is derived from the creation timestamp for natural sort stability. It is
// not globally unique under rapid concurrent sends; StoreKey is the identity
// used for edits and deletes.
type Message struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	IsOriginal bool   `json:"isOriginal"`
	Language   string `json:"language"`
	Timestamp  int64  `json:"timestamp"`
	SenderID   string `json:"senderId,omitempty"`

	// StoreKey is the store-assigned key the message was pushed under. It
	// is populated from snapshots and never persisted inside the message
	// body.
	StoreKey string `json:"-"`
}

// ConversationMeta is the shared per-conversation summary used for unread
// computation. SeenBy maps participant uid to the latest timestamp that
// participant has acknowledged; each client only ever advances its own entry,
// and never backwards.
type ConversationMeta struct {
	LastMessageTimestamp int64            `json:"lastMessageTimestamp"`
	LastSenderID         string           `json:"lastSenderId"`
	SeenBy               map[string]int64 `json:"seenBy,omitempty"`
}

// UserProfile is the directory record for a user.
type UserProfile struct {
	UID            string `json:"uid"`
	DisplayName    string `json:"displayName,omitempty"`
	Email          string `json:"email,omitempty"`
	PhotoURL       string `json:"photoURL,omitempty"`
	LastSeen       int64  `json:"lastSeen,omitempty"`
	NativeLanguage string `json:"nativeLanguage,omitempty"`
}

// Name returns the best human-readable name for the profile.
func (p UserProfile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Email != "" {
		return p.Email
	}
	return p.UID
}

// Room is an ad-hoc group conversation. The creator is the sole initial
// member and implicit owner; only the owner may remove members or destroy
// the room.
type Room struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedBy string          `json:"createdBy"`
	CreatedAt int64           `json:"createdAt"`
	Members   map[string]bool `json:"members,omitempty"`
}

// IsMember reports whether uid currently belongs to the room.
func (r Room) IsMember(uid string) bool {
	return r.Members[uid]
}

// Invitation is a pending room invite, keyed in the store by
// (target user, room id). It is consumed on accept or decline.
type Invitation struct {
	RoomID    string `json:"roomId"`
	RoomName  string `json:"roomName"`
	InvitedBy string `json:"invitedBy"`
	Timestamp int64  `json:"timestamp"`
}

// Settings are the per-user application settings. They are mirrored between
// the remote profile store (signed in) and a local fallback (guest), and
// merged with last-writer-wins on partial updates.
type Settings struct {
	AutoPlay         bool    `json:"autoPlay"`
	VoiceName        string  `json:"voiceName"`
	SpeechRate       float64 `json:"speechRate"`
	NoiseSuppression bool    `json:"noiseSuppression"`
	Theme            string  `json:"theme"`
	NativeLanguage   string  `json:"nativeLanguage"`
}

// DefaultSettings returns the settings a fresh session starts with.
func DefaultSettings() Settings {
	return Settings{
		AutoPlay:         true,
		VoiceName:        "Kore",
		SpeechRate:       1.0,
		NoiseSuppression: true,
		Theme:            "light",
		NativeLanguage:   "sr",
	}
}

// LanguageOption is one entry of the translation target catalog.
type LanguageOption struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
