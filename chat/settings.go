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

// Settings returns the session's current settings.
func (m *Manager) Settings() Settings {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.settings
}

// SaveSettings applies and persists new settings. Signed-in sessions write a
// partial merge to the settings document so concurrent devices do not clobber
// each other; guests fall back to local storage when available.
func (m *Manager) SaveSettings(s Settings) error {
	m.mux.Lock()
	m.settings = s
	signedIn := m.user != nil
	var uid string
	if signedIn {
		uid = m.user.UID
	}
	m.mux.Unlock()

	if m.local != nil {
		if err := m.local.StoreSettings(s); err != nil {
			jww.WARN.Printf("[CB] Could not store settings locally: %+v", err)
		}
	}

	if signedIn {
		return m.docs.Set("settings", uid, s, true)
	}
	return nil
}

// handleSettingsDoc folds a settings document update over the current
// settings, so fields the document does not carry keep their local values.
func (m *Manager) handleSettingsDoc(data []byte, err error) {
	if err != nil {
		jww.WARN.Printf("[CB] Settings subscription error: %+v", err)
		return
	}
	if data == nil {
		return
	}

	m.mux.Lock()
	s := m.settings
	if err = json.Unmarshal(data, &s); err != nil {
		m.mux.Unlock()
		jww.WARN.Printf("[CB] Malformed settings document: %+v", err)
		return
	}
	m.settings = s
	m.mux.Unlock()

	if m.local != nil {
		if err = m.local.StoreSettings(s); err != nil {
			jww.WARN.Printf("[CB] Could not mirror settings locally: %+v", err)
		}
	}
}

// defaultLanguages is the catalog served when the remote one is missing.
var defaultLanguages = []LanguageOption{
	{Code: "en", Name: "English"},
	{Code: "tr", Name: "Türkçe"},
	{Code: "sr", Name: "Srpski"},
}

// Languages returns the translation target catalog from the languages
// collection, falling back to the built-in set when the collection is empty
// or unreachable, so language selection works offline and for guests.
func (m *Manager) Languages() []LanguageOption {
	if m.docs == nil {
		return defaultLanguages
	}

	docs, err := m.docs.GetAll("languages")
	if err != nil {
		jww.WARN.Printf("[CB] Could not fetch language catalog: %+v", err)
		return defaultLanguages
	}
	if len(docs) == 0 {
		return defaultLanguages
	}

	langs := make([]LanguageOption, 0, len(docs))
	for code, raw := range docs {
		var lang LanguageOption
		if err = json.Unmarshal(raw, &lang); err != nil {
			jww.WARN.Printf("[CB] Malformed language entry %s: %+v",
				code, err)
			continue
		}
		if lang.Code == "" {
			lang.Code = code
		}
		langs = append(langs, lang)
	}
	if len(langs) == 0 {
		return defaultLanguages
	}

	sort.Slice(langs, func(i, j int) bool {
		return langs[i].Name < langs[j].Name
	})
	return langs
}

// GuestTarget returns the guest session's translation target language.
func (m *Manager) GuestTarget() string {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.guestTarget
}

// SetGuestTarget sets the guest session's translation target language.
func (m *Manager) SetGuestTarget(code string) {
	if code == "" {
		return
	}
	m.mux.Lock()
	m.guestTarget = code
	m.mux.Unlock()

	if m.local != nil {
		if err := m.local.StoreGuestTarget(code); err != nil {
			jww.WARN.Printf("[CB] Could not store guest target: %+v", err)
		}
	}
}
