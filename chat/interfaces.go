////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

// CancelFunc releases a live subscription. It is safe to call more than once.
type CancelFunc func()

// TreeStore is the realtime keyed-tree store conversations live in. Paths are
// slash delimited (chats/{key}/messages, chats/{key}/meta, chatRooms/{roomId},
// users/{uid}/...) and values are JSON. Delivery order across paths is not
// guaranteed; within a path, every mutation eventually produces a callback
// with the full current subtree.
type TreeStore interface {
	// Subscribe registers cb for the subtree at path. cb is invoked once
	// with the current value and again after every change until the returned
	// CancelFunc is called. A nil data slice means the subtree does not
	// exist. Store-side failures are delivered through err with data
	// unchanged; they do not terminate the subscription.
	Subscribe(path string, cb func(data []byte, err error)) CancelFunc

	// Get returns the JSON value of the subtree at path, or nil if it does
	// not exist.
	Get(path string) ([]byte, error)

	// Push stores v under a newly generated key below path and returns the
	// key. Generated keys never collide with direct conversation keys.
	Push(path string, v interface{}) (string, error)

	// Set replaces the value at path.
	Set(path string, v interface{}) error

	// Update merges fields into the object at path without touching
	// unlisted fields. Field names may contain slashes to address nested
	// children (e.g. "seenBy/<uid>").
	Update(path string, fields map[string]interface{}) error

	// Remove deletes the subtree at path.
	Remove(path string) error
}

// DocumentStore is the per-entity document store holding user profiles,
// settings, and the language catalog. Documents are JSON.
type DocumentStore interface {
	// Get returns the document, or nil if it does not exist.
	Get(collection, id string) ([]byte, error)

	// Set writes the document. When merge is set, fields absent from v are
	// preserved; a full overwrite is never issued for settings writes.
	Set(collection, id string, v interface{}, merge bool) error

	// GetAll returns every document in the collection keyed by id.
	GetAll(collection string) (map[string][]byte, error)

	// Subscribe registers cb for a single document. Semantics match
	// TreeStore.Subscribe.
	Subscribe(collection, id string, cb func(data []byte, err error)) CancelFunc

	// SubscribeAll registers cb for the whole collection.
	SubscribeAll(collection string,
		cb func(docs map[string][]byte, err error)) CancelFunc
}

// Translation is the result of a single atomic translate or
// transcribe-and-translate call. There are no partial results; on failure
// the whole call fails.
type Translation struct {
	// DetectedSource is the language code the backend detected the input
	// to be in.
	DetectedSource string

	// Transcript is the verbatim transcription. Only set for audio input.
	Transcript string

	// TranslatedText is the input rendered in the target language.
	TranslatedText string
}

// Translator is the machine translation backend.
type Translator interface {
	// TranslateText detects the language of text and translates it. An
	// empty target requests fixed-pair mode: the backend detects which of
	// the session's two working languages the text is in and translates to
	// the other.
	TranslateText(text, target string) (*Translation, error)

	// TranscribeAndTranslate transcribes the audio, detects its language,
	// and translates the transcript. Target semantics match TranslateText.
	TranscribeAndTranslate(audio []byte, mimeType, target string) (
		*Translation, error)
}

// Synthesizer renders text as speech.
type Synthesizer interface {
	// Synthesize returns playable audio samples for text using the given
	// voice. A nil slice with a nil error means the backend could not
	// synthesize the text; it is not a failure.
	Synthesize(text, voiceName string) ([]byte, error)
}

// AudioSink plays synthesized speech. Implementations hold at most one
// active source; the engine enforces this by stopping the previous source
// before starting a new one.
type AudioSink interface {
	// Play starts playback of samples at the given rate. onDone is invoked
	// exactly once when playback completes naturally. The returned stop
	// function discards the source without invoking onDone.
	Play(samples []byte, rate float64, onDone func()) (stop func(), err error)
}

// CaptureDevice is the microphone. At most one capture stream is active per
// client; Start while already capturing is an error.
type CaptureDevice interface {
	// Start acquires the input device and begins buffering audio.
	Start(noiseSuppression bool) error

	// Stop tears down the device and returns the buffered audio with its
	// MIME type. Stopping an idle device returns empty audio.
	Stop() (audio []byte, mimeType string, err error)
}

// UiCallbacks receives engine state changes for rendering. All callbacks are
// invoked from internal goroutines and must not block. A nil UiCallbacks on
// Params is replaced with a no-op implementation.
type UiCallbacks interface {
	// MessageListUpdate delivers the full ordered message list for the
	// active conversation after every snapshot.
	MessageListUpdate(msgs []Message)

	// UnreadUpdate fires when the any-conversation-unread aggregate
	// changes.
	UnreadUpdate(anyUnread bool)

	// PlaybackUpdate reports the id of the message currently playing, or
	// the empty string when playback stops.
	PlaybackUpdate(playingID string)

	// ContactListUpdate delivers the roster of other known users.
	ContactListUpdate(contacts []UserProfile)

	// RoomListUpdate delivers the rooms the viewer belongs to, newest
	// first.
	RoomListUpdate(rooms []Room)

	// InvitationUpdate delivers the viewer's pending room invitations.
	InvitationUpdate(invites []Invitation)

	// ConversationEnded fires when the open conversation is force-closed
	// (room deleted, viewer removed).
	ConversationEnded(key string, err error)

	// ErrorReport surfaces a failed explicit user action (recording,
	// transcription). Ambient failures are logged, not reported.
	ErrorReport(op string, err error)

	// Toast surfaces a foreground push notification.
	Toast(title, body string)
}

// dummyCallbacks swallows every event.
type dummyCallbacks struct{}

func (dummyCallbacks) MessageListUpdate([]Message)     {}
func (dummyCallbacks) UnreadUpdate(bool)               {}
func (dummyCallbacks) PlaybackUpdate(string)           {}
func (dummyCallbacks) ContactListUpdate([]UserProfile) {}
func (dummyCallbacks) RoomListUpdate([]Room)           {}
func (dummyCallbacks) InvitationUpdate([]Invitation)   {}
func (dummyCallbacks) ConversationEnded(string, error) {}
func (dummyCallbacks) ErrorReport(string, error)       {}
func (dummyCallbacks) Toast(string, string)            {}
