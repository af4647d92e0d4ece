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

	"github.com/pkg/errors"
)

// mockTranslator returns a canned translation, or a canned error.
type mockTranslator struct {
	mux        sync.Mutex
	result     *Translation
	err        error
	lastText   string
	lastTarget string
	calls      int
}

func (mt *mockTranslator) TranslateText(text, target string) (
	*Translation, error) {
	mt.mux.Lock()
	defer mt.mux.Unlock()
	mt.lastText = text
	mt.lastTarget = target
	mt.calls++
	if mt.err != nil {
		return nil, mt.err
	}
	if mt.result != nil {
		return mt.result, nil
	}
	return &Translation{DetectedSource: "sr", TranslatedText: text + "!"}, nil
}

func (mt *mockTranslator) TranscribeAndTranslate(_ []byte, _, target string) (
	*Translation, error) {
	mt.mux.Lock()
	defer mt.mux.Unlock()
	mt.lastTarget = target
	mt.calls++
	if mt.err != nil {
		return nil, mt.err
	}
	if mt.result != nil {
		return mt.result, nil
	}
	return &Translation{
		DetectedSource: "sr",
		Transcript:     "zdravo",
		TranslatedText: "merhaba",
	}, nil
}

// mockSynth returns fixed samples for every request. decline simulates the
// backend refusing to voice the text (nil audio, nil error).
type mockSynth struct {
	mux     sync.Mutex
	samples []byte
	err     error
	decline bool
	calls   []string
}

func (s *mockSynth) Synthesize(text, _ string) ([]byte, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.calls = append(s.calls, text)
	if s.err != nil {
		return nil, s.err
	}
	if s.decline {
		return nil, nil
	}
	if s.samples == nil {
		return []byte{1, 2, 3}, nil
	}
	return s.samples, nil
}

// mockSink records what was played and lets the test complete or interrupt
// playback.
type mockSink struct {
	mux     sync.Mutex
	played  int
	stopped int
	onDone  func()
}

func (s *mockSink) Play(_ []byte, _ float64, onDone func()) (func(), error) {
	s.mux.Lock()
	s.played++
	s.onDone = onDone
	s.mux.Unlock()
	return func() {
		s.mux.Lock()
		s.stopped++
		s.mux.Unlock()
	}, nil
}

// finish simulates natural playback completion.
func (s *mockSink) finish() {
	s.mux.Lock()
	onDone := s.onDone
	s.onDone = nil
	s.mux.Unlock()
	if onDone != nil {
		onDone()
	}
}

func (s *mockSink) plays() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.played
}

// mockDevice is a scripted capture device.
type mockDevice struct {
	mux       sync.Mutex
	recording bool
	audio     []byte
	startErr  error
	stopErr   error
}

func (d *mockDevice) Start(bool) error {
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.recording = true
	return nil
}

func (d *mockDevice) Stop() ([]byte, string, error) {
	d.mux.Lock()
	defer d.mux.Unlock()
	d.recording = false
	if d.stopErr != nil {
		return nil, "", d.stopErr
	}
	if d.audio == nil {
		return []byte("audio"), "audio/webm", nil
	}
	return d.audio, "audio/webm", nil
}

// mockDocs is an in-memory DocumentStore with synchronous subscription
// delivery, mirroring the semantics the engine expects from the real one.
type mockDocs struct {
	mux     sync.Mutex
	data    map[string]map[string][]byte
	nextID  uint64
	docSubs map[uint64]docSub
	colSubs map[uint64]colSub
}

type docSub struct {
	collection, id string
	cb             func([]byte, error)
}

type colSub struct {
	collection string
	cb         func(map[string][]byte, error)
}

func newMockDocs() *mockDocs {
	return &mockDocs{
		data:    make(map[string]map[string][]byte),
		docSubs: make(map[uint64]docSub),
		colSubs: make(map[uint64]colSub),
	}
}

func (md *mockDocs) Get(collection, id string) ([]byte, error) {
	md.mux.Lock()
	defer md.mux.Unlock()
	doc, ok := md.data[collection][id]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (md *mockDocs) Set(collection, id string, v interface{},
	merge bool) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	md.mux.Lock()
	col := md.data[collection]
	if col == nil {
		col = make(map[string][]byte)
		md.data[collection] = col
	}

	if merge && col[id] != nil {
		var old, add map[string]interface{}
		if err = json.Unmarshal(col[id], &old); err != nil {
			md.mux.Unlock()
			return err
		}
		if err = json.Unmarshal(raw, &add); err != nil {
			md.mux.Unlock()
			return err
		}
		for k, val := range add {
			old[k] = val
		}
		if raw, err = json.Marshal(old); err != nil {
			md.mux.Unlock()
			return err
		}
	}
	col[id] = raw
	md.mux.Unlock()

	md.notify(collection, id)
	return nil
}

func (md *mockDocs) GetAll(collection string) (map[string][]byte, error) {
	md.mux.Lock()
	defer md.mux.Unlock()
	return md.snapshotLocked(collection), nil
}

func (md *mockDocs) Subscribe(collection, id string,
	cb func([]byte, error)) CancelFunc {
	md.mux.Lock()
	md.nextID++
	subID := md.nextID
	md.docSubs[subID] = docSub{collection: collection, id: id, cb: cb}
	initial := md.data[collection][id]
	md.mux.Unlock()

	cb(initial, nil)
	return func() {
		md.mux.Lock()
		delete(md.docSubs, subID)
		md.mux.Unlock()
	}
}

func (md *mockDocs) SubscribeAll(collection string,
	cb func(map[string][]byte, error)) CancelFunc {
	md.mux.Lock()
	md.nextID++
	subID := md.nextID
	md.colSubs[subID] = colSub{collection: collection, cb: cb}
	initial := md.snapshotLocked(collection)
	md.mux.Unlock()

	cb(initial, nil)
	return func() {
		md.mux.Lock()
		delete(md.colSubs, subID)
		md.mux.Unlock()
	}
}

func (md *mockDocs) notify(collection, id string) {
	md.mux.Lock()
	type delivery struct{ fire func() }
	var deliveries []delivery
	for _, sub := range md.docSubs {
		if sub.collection == collection && sub.id == id {
			data := md.data[collection][id]
			cb := sub.cb
			deliveries = append(deliveries,
				delivery{func() { cb(data, nil) }})
		}
	}
	for _, sub := range md.colSubs {
		if sub.collection == collection {
			snap := md.snapshotLocked(collection)
			cb := sub.cb
			deliveries = append(deliveries,
				delivery{func() { cb(snap, nil) }})
		}
	}
	md.mux.Unlock()

	for _, d := range deliveries {
		d.fire()
	}
}

func (md *mockDocs) snapshotLocked(collection string) map[string][]byte {
	out := make(map[string][]byte, len(md.data[collection]))
	for id, doc := range md.data[collection] {
		cp := make([]byte, len(doc))
		copy(cp, doc)
		out[id] = cp
	}
	return out
}

// uiRecorder captures callback invocations for assertions.
type uiRecorder struct {
	mux       sync.Mutex
	messages  [][]Message
	unread    []bool
	playing   []string
	contacts  [][]UserProfile
	rooms     [][]Room
	invites   [][]Invitation
	ended     []error
	errors    []string
	toasts    []string
}

func (r *uiRecorder) MessageListUpdate(msgs []Message) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.messages = append(r.messages, msgs)
}

func (r *uiRecorder) UnreadUpdate(anyUnread bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.unread = append(r.unread, anyUnread)
}

func (r *uiRecorder) PlaybackUpdate(id string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.playing = append(r.playing, id)
}

func (r *uiRecorder) ContactListUpdate(contacts []UserProfile) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.contacts = append(r.contacts, contacts)
}

func (r *uiRecorder) RoomListUpdate(rooms []Room) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.rooms = append(r.rooms, rooms)
}

func (r *uiRecorder) InvitationUpdate(invites []Invitation) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.invites = append(r.invites, invites)
}

func (r *uiRecorder) ConversationEnded(_ string, err error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.ended = append(r.ended, err)
}

func (r *uiRecorder) ErrorReport(op string, _ error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.errors = append(r.errors, op)
}

func (r *uiRecorder) Toast(title, body string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.toasts = append(r.toasts, title+": "+body)
}

func (r *uiRecorder) lastMessages() []Message {
	r.mux.Lock()
	defer r.mux.Unlock()
	if len(r.messages) == 0 {
		return nil
	}
	return r.messages[len(r.messages)-1]
}

func (r *uiRecorder) lastUnread() (bool, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if len(r.unread) == 0 {
		return false, false
	}
	return r.unread[len(r.unread)-1], true
}

// errTest is a generic failure used by scripted doubles.
var errTest = errors.New("scripted failure")

// newTestManager builds a guest-mode manager wired entirely to doubles.
func newTestManager(ui *uiRecorder) (*Manager, *mockTranslator, *mockSynth,
	*mockSink, *mockDevice, *mockDocs) {

	mt := &mockTranslator{}
	synth := &mockSynth{}
	sink := &mockSink{}
	device := &mockDevice{}
	docs := newMockDocs()

	var cb UiCallbacks
	if ui != nil {
		cb = ui
	}

	m := NewManager(Params{
		Remote:      NewMemoryTree(),
		Documents:   docs,
		Translator:  mt,
		Synthesizer: synth,
		Sink:        sink,
		Capture:     device,
		Callbacks:   cb,
	})
	return m, mt, synth, sink, device, docs
}
