////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"strconv"

	jww "github.com/spf13/jwalterweatherman"
)

// CaptureState is the voice input state machine. Exactly one state is ever
// active; there is no "recording and processing" combination.
type CaptureState uint8

const (
	// CaptureIdle means no capture is in progress.
	CaptureIdle CaptureState = iota

	// CaptureRecording means the microphone is live and buffering.
	CaptureRecording

	// CaptureProcessing means the recording has stopped and is being
	// transcribed and translated.
	CaptureProcessing
)

// String prints a human-readable name of the CaptureState for logging.
func (cs CaptureState) String() string {
	switch cs {
	case CaptureIdle:
		return "idle"
	case CaptureRecording:
		return "recording"
	case CaptureProcessing:
		return "processing"
	default:
		return "INVALID CAPTURE STATE: " + strconv.Itoa(int(cs))
	}
}

// Capture returns the current voice input state.
func (m *Manager) Capture() CaptureState {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.capture
}

// StartRecording opens the microphone. Only valid from the idle state.
func (m *Manager) StartRecording() error {
	m.mux.Lock()
	if m.capture != CaptureIdle {
		state := m.capture
		m.mux.Unlock()
		jww.WARN.Printf("[CB] StartRecording refused while %s", state)
		return ErrCaptureBusy
	}
	m.capture = CaptureRecording
	suppress := m.settings.NoiseSuppression
	m.mux.Unlock()

	if err := m.device.Start(suppress); err != nil {
		m.mux.Lock()
		m.capture = CaptureIdle
		m.mux.Unlock()
		return err
	}

	jww.DEBUG.Print("[CB] Recording started")
	return nil
}

// StopRecording closes the microphone and hands the buffered audio to
// transcription. The transition to processing happens before the device is
// touched so a second StopRecording cannot race in.
func (m *Manager) StopRecording() error {
	m.mux.Lock()
	if m.capture != CaptureRecording {
		m.mux.Unlock()
		return ErrNotRecording
	}
	m.capture = CaptureProcessing
	m.mux.Unlock()

	go m.processRecording()
	return nil
}

// CancelRecording closes the microphone and discards the audio.
func (m *Manager) CancelRecording() error {
	m.mux.Lock()
	if m.capture != CaptureRecording {
		m.mux.Unlock()
		return ErrNotRecording
	}
	m.capture = CaptureIdle
	m.mux.Unlock()

	if _, _, err := m.device.Stop(); err != nil {
		jww.WARN.Printf("[CB] Device stop on cancel failed: %+v", err)
	}
	jww.DEBUG.Print("[CB] Recording cancelled")
	return nil
}

// processRecording runs the stop → transcribe → translate → commit pipeline.
// Runs on its own goroutine; whatever happens, the state machine returns to
// idle.
func (m *Manager) processRecording() {
	defer func() {
		m.mux.Lock()
		m.capture = CaptureIdle
		m.mux.Unlock()
	}()

	audio, mimeType, err := m.device.Stop()
	if err != nil {
		jww.ERROR.Printf("[CB] Could not stop capture device: %+v", err)
		m.cb.ErrorReport("recording", err)
		return
	}
	if len(audio) == 0 {
		jww.WARN.Print("[CB] Capture produced no audio")
		return
	}

	m.mux.Lock()
	target := ""
	if m.user == nil {
		target = m.guestTarget
	}
	m.mux.Unlock()

	tr, err := m.translator.TranscribeAndTranslate(audio, mimeType, target)
	if err != nil {
		jww.ERROR.Printf("[CB] Transcription failed: %+v", err)
		m.cb.ErrorReport("transcription", err)
		return
	}
	if tr.Transcript == "" {
		jww.WARN.Print("[CB] Transcription produced no text")
		return
	}

	if err = m.commitUtterance(tr.Transcript, tr, target); err != nil {
		jww.ERROR.Printf("[CB] Could not commit voice turn: %+v", err)
		m.cb.ErrorReport("send", err)
	}
}
