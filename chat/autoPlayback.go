////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

// autoPlaySettleDelay is how long after a snapshot the auto-played message
// waits before synthesis starts, giving the view time to render it.
var autoPlaySettleDelay = 300 * time.Millisecond

// playbackController owns the single active audio source and guarantees that
// a newly arrived message auto-plays at most once per conversation
// transition, no matter how many times the same snapshot is replayed.
type playbackController struct {
	synth Synthesizer
	sink  AudioSink

	// settings is read at trigger time so toggling autoplay or changing
	// the voice applies to the next playback without re-registration.
	settings func() Settings

	// publish reports the currently playing message id, "" when idle.
	publish func(playingID string)

	mux            sync.Mutex
	lastAutoPlayed string
	playingID      string
	stopActive     func()
}

func newPlaybackController(synth Synthesizer, sink AudioSink,
	settings func() Settings, publish func(string)) *playbackController {
	return &playbackController{
		synth:    synth,
		sink:     sink,
		settings: settings,
		publish:  publish,
	}
}

// evaluate inspects the chronologically last message of a fresh snapshot and
// auto-plays it if eligible. The id is recorded as played before the settle
// delay fires, so a near-simultaneous snapshot replay cannot trigger a
// second playback.
func (pc *playbackController) evaluate(msgs []Message, viewer string,
	shared bool) {

	s := pc.settings()
	if !s.AutoPlay || len(msgs) == 0 {
		return
	}

	last := msgs[len(msgs)-1]
	if last.SenderID == SystemSender {
		return
	}

	native := s.NativeLanguage
	if native == "" {
		native = DefaultSettings().NativeLanguage
	}

	var eligible bool
	if shared {
		eligible = last.SenderID != viewer && last.Language == native
	} else {
		eligible = !last.IsOriginal && last.Language == native
	}
	if !eligible {
		return
	}

	pc.mux.Lock()
	if pc.lastAutoPlayed == last.ID {
		pc.mux.Unlock()
		return
	}
	pc.lastAutoPlayed = last.ID
	pc.mux.Unlock()

	time.AfterFunc(autoPlaySettleDelay, func() { pc.play(last) })
}

// markPlayed records id as already auto-played without playing it. Used by
// the guest send path, which starts playback itself before the snapshot
// arrives.
func (pc *playbackController) markPlayed(id string) {
	pc.mux.Lock()
	pc.lastAutoPlayed = id
	pc.mux.Unlock()
}

// play synthesizes msg and plays it, stopping and discarding any active
// source first. Two sources are never audible concurrently.
func (pc *playbackController) play(msg Message) {
	if msg.Text == "" || isEmojiOnly(msg.Text) {
		return
	}

	s := pc.settings()

	pc.mux.Lock()
	if pc.stopActive != nil {
		pc.stopActive()
		pc.stopActive = nil
	}
	pc.playingID = msg.ID
	pc.mux.Unlock()

	pc.publish(msg.ID)

	go pc.run(msg, s)
}

func (pc *playbackController) run(msg Message, s Settings) {
	samples, err := pc.synth.Synthesize(msg.Text, s.VoiceName)
	if err != nil {
		jww.ERROR.Printf("[CB] Speech synthesis failed for %s: %+v",
			msg.ID, err)
		pc.clear(msg.ID)
		return
	}
	if samples == nil {
		jww.WARN.Printf("[CB] Synthesizer produced no audio for %s", msg.ID)
		pc.clear(msg.ID)
		return
	}

	stop, err := pc.sink.Play(samples, s.SpeechRate,
		func() { pc.clear(msg.ID) })
	if err != nil {
		jww.ERROR.Printf("[CB] Playback failed for %s: %+v", msg.ID, err)
		pc.clear(msg.ID)
		return
	}

	pc.mux.Lock()
	if pc.playingID == msg.ID {
		pc.stopActive = stop
		pc.mux.Unlock()
		return
	}
	pc.mux.Unlock()

	// Another playback started while this one was synthesizing.
	stop()
}

// clear resets the playing state if msg id is still the active one. Called
// on natural completion and on every failure path.
func (pc *playbackController) clear(id string) {
	pc.mux.Lock()
	cleared := pc.playingID == id
	if cleared {
		pc.playingID = ""
		pc.stopActive = nil
	}
	pc.mux.Unlock()

	if cleared {
		pc.publish("")
	}
}

// stopAll discards any active source. Used on teardown.
func (pc *playbackController) stopAll() {
	pc.mux.Lock()
	stop := pc.stopActive
	id := pc.playingID
	pc.stopActive = nil
	pc.playingID = ""
	pc.mux.Unlock()

	if stop != nil {
		stop()
	}
	if id != "" {
		pc.publish("")
	}
}

// nowPlaying returns the id of the message currently playing, or "".
func (pc *playbackController) nowPlaying() string {
	pc.mux.Lock()
	defer pc.mux.Unlock()
	return pc.playingID
}
