////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/chatbridge/client/storage"
)

// Tests that guest settings persist to local storage and survive a new
// manager over the same store.
func TestManager_SaveSettings_Guest(t *testing.T) {
	local := storage.NewInMemory()

	m := NewManager(Params{
		Translator: &mockTranslator{},
		Local:      local,
	})

	s := m.Settings()
	s.VoiceName = "Puck"
	s.AutoPlay = false
	require.NoError(t, m.SaveSettings(s))
	require.Equal(t, "Puck", m.Settings().VoiceName)

	m2 := NewManager(Params{
		Translator: &mockTranslator{},
		Local:      local,
	})
	require.Equal(t, "Puck", m2.Settings().VoiceName)
	require.False(t, m2.Settings().AutoPlay)
}

// Tests that signed-in saves go to the settings document as a merge.
func TestManager_SaveSettings_SignedIn(t *testing.T) {
	m, _, _, _, _, docs := newTestManager(&uiRecorder{})
	require.NoError(t, m.SignIn(UserProfile{UID: "alice"}))

	s := m.Settings()
	s.SpeechRate = 1.5
	require.NoError(t, m.SaveSettings(s))

	doc, err := docs.Get("settings", "alice")
	require.NoError(t, err)
	require.Contains(t, string(doc), "1.5")
}

// Tests the language catalog: remote catalog when present, built-in set
// otherwise.
func TestManager_Languages(t *testing.T) {
	m, _, _, _, _, docs := newTestManager(nil)

	langs := m.Languages()
	require.Equal(t, defaultLanguages, langs)

	require.NoError(t, docs.Set("languages", "en",
		LanguageOption{Code: "en", Name: "English"}, false))
	require.NoError(t, docs.Set("languages", "de",
		LanguageOption{Name: "Deutsch"}, false))

	langs = m.Languages()
	require.Len(t, langs, 2)

	// Sorted by name, with the document key as the fallback code.
	require.Equal(t, "de", langs[0].Code)
	require.Equal(t, "Deutsch", langs[0].Name)
	require.Equal(t, "en", langs[1].Code)
}

// Tests guest target selection and its local persistence.
func TestManager_GuestTarget(t *testing.T) {
	local := storage.NewInMemory()
	m := NewManager(Params{Translator: &mockTranslator{}, Local: local})

	require.Equal(t, "tr", m.GuestTarget())

	m.SetGuestTarget("en")
	require.Equal(t, "en", m.GuestTarget())

	// The empty code is ignored.
	m.SetGuestTarget("")
	require.Equal(t, "en", m.GuestTarget())

	m2 := NewManager(Params{Translator: &mockTranslator{}, Local: local})
	require.Equal(t, "en", m2.GuestTarget())
}
