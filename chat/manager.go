////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package chat is the conversation synchronization and bilingual rendering
// engine of the ChatBridge client. It keeps an ordered, deduplicated view of
// the active conversation, a live unread aggregate over every known
// conversation, an exactly-once auto-playback state machine, and the
// translation pipeline that turns one utterance into an original/translation
// message pair. The identity provider, the stores, the translation backend,
// and the audio devices are all external collaborators reached through the
// interfaces in interfaces.go.
package chat

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/chatbridge/client/storage"
)

// guestUID keys the in-memory personal collection of an unauthenticated
// session.
const guestUID = "guest"

// convKind tags what the current selection is.
type convKind uint8

const (
	convNone convKind = iota
	convDirect
	convRoom
)

// currentConversation is the single authoritative record of which
// conversation is open. Long-lived callbacks consult it at invocation time
// instead of caching their own copy, so a late snapshot can always detect
// that the selection has moved on.
type currentConversation struct {
	mux     sync.RWMutex
	kind    convKind
	key     string
	contact UserProfile
	room    Room
}

// Key returns the open conversation key, or "" in personal mode.
func (cc *currentConversation) Key() string {
	cc.mux.RLock()
	defer cc.mux.RUnlock()
	return cc.key
}

func (cc *currentConversation) get() (convKind, string, UserProfile, Room) {
	cc.mux.RLock()
	defer cc.mux.RUnlock()
	return cc.kind, cc.key, cc.contact, cc.room
}

func (cc *currentConversation) set(kind convKind, key string,
	contact UserProfile, room Room) {
	cc.mux.Lock()
	cc.kind = kind
	cc.key = key
	cc.contact = contact
	cc.room = room
	cc.mux.Unlock()
}

// updateRoom refreshes the cached room record if it is still the open one.
func (cc *currentConversation) updateRoom(room Room) {
	cc.mux.Lock()
	if cc.kind == convRoom && cc.key == room.ID {
		cc.room = room
	}
	cc.mux.Unlock()
}

// Params collects the collaborators a Manager is built from. Remote and
// Documents may be nil for a guest-only client; everything else is required
// for the corresponding feature to function.
type Params struct {
	Remote      TreeStore
	Documents   DocumentStore
	Translator  Translator
	Synthesizer Synthesizer
	Sink        AudioSink
	Capture     CaptureDevice
	Local       *storage.Local
	Callbacks   UiCallbacks
}

// Manager is the client engine. All exported methods are safe for
// concurrent use.
type Manager struct {
	remote     TreeStore
	docs       DocumentStore
	translator Translator
	device     CaptureDevice
	local      *storage.Local
	cb         UiCallbacks

	guest  *MemoryTree
	cur    currentConversation
	stream *messageStream
	pc     *playbackController

	mux         sync.Mutex
	user        *UserProfile
	settings    Settings
	guestTarget string
	pair        languagePair
	capture     CaptureState
	deleting    deleteState
	tracker     *unreadTracker
	contacts    map[string]UserProfile
	rooms       map[string]Room
	invites     []Invitation

	roomWatch     CancelFunc
	inviteWatch   CancelFunc
	settingsWatch CancelFunc
	contactsWatch CancelFunc
	roomsWatch    CancelFunc
}

// NewManager builds the engine and opens the guest session. The returned
// manager is in guest mode until SignIn is called.
func NewManager(p Params) *Manager {
	cb := p.Callbacks
	if cb == nil {
		cb = dummyCallbacks{}
	}

	m := &Manager{
		remote:      p.Remote,
		docs:        p.Documents,
		translator:  p.Translator,
		device:      p.Capture,
		local:       p.Local,
		cb:          cb,
		guest:       NewMemoryTree(),
		settings:    DefaultSettings(),
		guestTarget: "tr",
		pair:        languagePair{source: "sr", target: "tr"},
		contacts:    make(map[string]UserProfile),
		rooms:       make(map[string]Room),
	}

	if m.local != nil {
		var s Settings
		if err := m.local.LoadSettings(&s); err == nil {
			m.settings = s
		} else if !storage.IsNotFound(err) {
			jww.WARN.Printf("[CB] Could not load local settings: %+v", err)
		}
		if code, err := m.local.LoadGuestTarget(); err == nil {
			m.guestTarget = code
		} else if !storage.IsNotFound(err) {
			jww.WARN.Printf("[CB] Could not load guest target: %+v", err)
		}
	}

	m.pc = newPlaybackController(p.Synthesizer, p.Sink, m.Settings,
		func(id string) { m.cb.PlaybackUpdate(id) })
	m.stream = newMessageStream(p.Documents, m.markSeen, m.handleMessages)

	m.reopenStream()
	return m
}

// SignIn switches the engine to the authenticated session for profile:
// remote message collections, settings sync, the invitation feed, and the
// unread tracker over every known conversation.
func (m *Manager) SignIn(profile UserProfile) error {
	if m.remote == nil || m.docs == nil {
		return errors.New("remote stores are not configured")
	}
	if profile.UID == "" {
		return errors.New("profile has no uid")
	}
	if m.viewerID() != "" {
		m.SignOut()
	}

	jww.INFO.Printf("[CB] Signing in as %s", profile.UID)

	m.mux.Lock()
	m.user = &profile
	m.tracker = newUnreadTracker(profile.UID, m.remote, m.cur.Key,
		func(anyUnread bool) { m.cb.UnreadUpdate(anyUnread) })
	m.mux.Unlock()

	m.ensureRemoteDefaults(profile)

	uid := profile.UID
	settingsWatch := m.docs.Subscribe("settings", uid, m.handleSettingsDoc)
	inviteWatch := m.remote.Subscribe(invitationsPath(uid),
		m.handleInvitations)
	contactsWatch := m.docs.SubscribeAll("users", m.handleDirectory)
	roomsWatch := m.remote.Subscribe("chatRooms", m.handleRoomDirectory)

	m.mux.Lock()
	m.settingsWatch = settingsWatch
	m.inviteWatch = inviteWatch
	m.contactsWatch = contactsWatch
	m.roomsWatch = roomsWatch
	m.mux.Unlock()

	m.reopenStream()
	return nil
}

// SignOut tears the authenticated session down and returns to guest mode.
// Every remote subscription is released.
func (m *Manager) SignOut() {
	uid := m.viewerID()
	if uid == "" {
		return
	}
	jww.INFO.Printf("[CB] Signing out %s", uid)

	m.mux.Lock()
	watches := []CancelFunc{m.settingsWatch, m.inviteWatch,
		m.contactsWatch, m.roomsWatch}
	tracker := m.tracker
	m.settingsWatch, m.inviteWatch = nil, nil
	m.contactsWatch, m.roomsWatch = nil, nil
	m.tracker = nil
	m.user = nil
	m.contacts = make(map[string]UserProfile)
	m.rooms = make(map[string]Room)
	m.invites = nil
	m.mux.Unlock()

	for _, cancel := range watches {
		if cancel != nil {
			cancel()
		}
	}
	if tracker != nil {
		tracker.stop()
	}

	m.cancelRoomWatch()
	m.cur.set(convNone, "", UserProfile{}, Room{})
	m.pc.stopAll()
	m.reopenStream()

	m.cb.ContactListUpdate([]UserProfile{})
	m.cb.RoomListUpdate([]Room{})
	m.cb.InvitationUpdate([]Invitation{})
}

// SelectContact opens the direct conversation with contact.
func (m *Manager) SelectContact(contact UserProfile) error {
	uid := m.viewerID()
	if uid == "" {
		return ErrNotSignedIn
	}

	m.cancelRoomWatch()
	m.cur.set(convDirect, DirectKey(uid, contact.UID), contact, Room{})
	m.reopenStream()
	return nil
}

// SelectRoom opens the room conversation and begins watching the room for
// deletion or loss of membership.
func (m *Manager) SelectRoom(room Room) error {
	uid := m.viewerID()
	if uid == "" {
		return ErrNotSignedIn
	}

	m.cancelRoomWatch()
	m.cur.set(convRoom, RoomKey(room), UserProfile{}, room)
	m.watchRoom(room.ID)
	m.reopenStream()
	return nil
}

// CloseConversation returns to personal mode.
func (m *Manager) CloseConversation() {
	m.cancelRoomWatch()
	m.cur.set(convNone, "", UserProfile{}, Room{})
	m.reopenStream()
}

// ActiveConversationKey returns the open conversation key, or "".
func (m *Manager) ActiveConversationKey() string {
	return m.cur.Key()
}

// ActiveContact returns the open direct conversation partner.
func (m *Manager) ActiveContact() (UserProfile, bool) {
	kind, _, contact, _ := m.cur.get()
	return contact, kind == convDirect
}

// ActiveRoom returns the open room.
func (m *Manager) ActiveRoom() (Room, bool) {
	kind, _, _, room := m.cur.get()
	return room, kind == convRoom
}

// Messages returns the ordered message list of the open conversation.
func (m *Manager) Messages() []Message {
	return m.stream.snapshot()
}

// SenderProfile returns the memoized profile of a room message sender.
func (m *Manager) SenderProfile(uid string) (UserProfile, bool) {
	return m.stream.profile(uid)
}

// AnyUnread returns the current unread aggregate. Guest sessions never
// report unread conversations.
func (m *Manager) AnyUnread() bool {
	m.mux.Lock()
	tracker := m.tracker
	m.mux.Unlock()
	if tracker == nil {
		return false
	}
	return tracker.anyUnread()
}

// NowPlaying returns the id of the message currently playing, or "".
func (m *Manager) NowPlaying() string {
	return m.pc.nowPlaying()
}

// PlayMessage starts manual playback of the message with the given id,
// stopping any active playback first.
func (m *Manager) PlayMessage(id string) error {
	for _, msg := range m.stream.snapshot() {
		if msg.ID == id {
			m.pc.play(msg)
			return nil
		}
	}
	return ErrMessageNotFound
}

// HandleForegroundMessage surfaces a foreground push notification as a
// toast.
func (m *Manager) HandleForegroundMessage(title, body string) {
	if title == "" {
		title = "New message"
	}
	m.cb.Toast(title, body)
}

// RegisterPushToken records a push delivery token for the signed-in user.
func (m *Manager) RegisterPushToken(token string) error {
	uid := m.viewerID()
	if uid == "" {
		return ErrNotSignedIn
	}
	return m.remote.Set(fcmTokenPath(uid, token), true)
}

// viewerID returns the signed-in uid, or "" for guests.
func (m *Manager) viewerID() string {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.user == nil {
		return ""
	}
	return m.user.UID
}

// Profile returns the signed-in user's profile.
func (m *Manager) Profile() (UserProfile, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.user == nil {
		return UserProfile{}, false
	}
	return *m.user, true
}

// sessionStore returns the store and uid the session reads and writes:
// the remote tree when signed in, the in-memory guest tree otherwise.
func (m *Manager) sessionStore() (TreeStore, string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.user == nil {
		return m.guest, guestUID
	}
	return m.remote, m.user.UID
}

// reopenStream points the message stream at whatever the current selection
// is and re-evaluates the unread aggregate against the new selection.
func (m *Manager) reopenStream() {
	store, uid := m.sessionStore()
	kind, key, _, _ := m.cur.get()

	switch kind {
	case convDirect:
		m.stream.open(store, messagesPath(key), key, uid, false)
	case convRoom:
		m.stream.open(store, messagesPath(key), key, uid, true)
	default:
		m.stream.open(store, personalMessagesPath(uid), "", uid, false)
	}

	m.mux.Lock()
	tracker := m.tracker
	m.mux.Unlock()
	if tracker != nil {
		tracker.refresh()
	}
}

// markSeen advances the viewer's own seenBy entry for the conversation to
// now. Each participant only ever writes its own entry, as a partial merge,
// so there is no cross-writer race on the meta object. Failures are ambient
// and never interrupt the chat flow.
func (m *Manager) markSeen(convKey string) {
	uid := m.viewerID()
	if uid == "" {
		return
	}
	err := m.remote.Update(seenByPath(convKey),
		map[string]interface{}{uid: netTime.Now().UnixMilli()})
	if err != nil {
		jww.WARN.Printf("[CB] Could not mark %s seen: %+v", convKey, err)
	}
}

// handleMessages fans a fresh snapshot out to the UI and the auto-playback
// controller.
func (m *Manager) handleMessages(msgs []Message) {
	m.cb.MessageListUpdate(msgs)

	kind, _, _, _ := m.cur.get()
	m.pc.evaluate(msgs, m.viewerID(), kind != convNone)
}

// handleDirectory ingests the user directory: every other known user is a
// potential direct conversation for the unread roster.
func (m *Manager) handleDirectory(docs map[string][]byte, err error) {
	if err != nil {
		jww.WARN.Printf("[CB] User directory subscription error: %+v", err)
		return
	}
	uid := m.viewerID()
	if uid == "" {
		return
	}

	contacts := make(map[string]UserProfile, len(docs))
	for id, raw := range docs {
		if id == uid {
			continue
		}
		var p UserProfile
		if err = json.Unmarshal(raw, &p); err != nil {
			jww.WARN.Printf("[CB] Malformed profile %s: %+v", id, err)
			continue
		}
		if p.UID == "" {
			p.UID = id
		}
		contacts[id] = p
	}

	m.mux.Lock()
	m.contacts = contacts
	m.mux.Unlock()

	list := make([]UserProfile, 0, len(contacts))
	for _, p := range contacts {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	m.cb.ContactListUpdate(list)

	m.reconcileRoster()
}

// handleRoomDirectory ingests the room catalog and keeps only rooms the
// viewer belongs to, newest first.
func (m *Manager) handleRoomDirectory(data []byte, err error) {
	if err != nil {
		jww.WARN.Printf("[CB] Room directory subscription error: %+v", err)
		return
	}
	uid := m.viewerID()
	if uid == "" {
		return
	}

	raw := make(map[string]Room)
	if data != nil {
		if err = json.Unmarshal(data, &raw); err != nil {
			jww.WARN.Printf("[CB] Malformed room directory: %+v", err)
			return
		}
	}

	mine := make(map[string]Room)
	for id, room := range raw {
		room.ID = id
		if room.IsMember(uid) {
			mine[id] = room
		}
	}

	m.mux.Lock()
	m.rooms = mine
	m.mux.Unlock()

	list := make([]Room, 0, len(mine))
	for _, room := range mine {
		list = append(list, room)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt > list[j].CreatedAt
	})
	m.cb.RoomListUpdate(list)

	m.reconcileRoster()
}

// reconcileRoster rebuilds the unread tracker's conversation set from the
// current contact and room rosters.
func (m *Manager) reconcileRoster() {
	m.mux.Lock()
	tracker := m.tracker
	var uid string
	if m.user != nil {
		uid = m.user.UID
	}
	keys := make(map[string]struct{}, len(m.contacts)+len(m.rooms))
	for other := range m.contacts {
		keys[DirectKey(uid, other)] = struct{}{}
	}
	for id := range m.rooms {
		keys[id] = struct{}{}
	}
	m.mux.Unlock()

	if tracker != nil && uid != "" {
		tracker.reconcile(keys)
	}
}

// ensureRemoteDefaults writes the registration-time documents. Both writes
// are partial merges so they can never clobber fields written by the direct
// save path.
func (m *Manager) ensureRemoteDefaults(profile UserProfile) {
	if err := m.docs.Set("users", profile.UID, profile, true); err != nil {
		jww.WARN.Printf("[CB] Could not store profile: %+v", err)
	}

	existing, err := m.docs.Get("settings", profile.UID)
	if err != nil {
		jww.WARN.Printf("[CB] Could not read settings doc: %+v", err)
		return
	}
	if existing == nil {
		if err = m.docs.Set(
			"settings", profile.UID, m.Settings(), true); err != nil {
			jww.WARN.Printf("[CB] Could not seed settings: %+v", err)
		}
	}
}
