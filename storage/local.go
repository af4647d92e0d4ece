////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package storage is the encrypted local persistence layer. It keeps the
// data a session must not lose between launches when no remote store is
// reachable: the user's settings and the guest session's chosen target
// language.
package storage

import (
	"github.com/pkg/errors"
	"gitlab.com/elixxir/ekv"
)

const (
	settingsKey    = "app-settings"
	guestTargetKey = "guest-target-language"
)

// ErrNotFound is returned when the requested record has never been stored.
var ErrNotFound = errors.New("record not found in local storage")

// IsNotFound reports whether err means the record does not exist, as
// opposed to a storage failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Local is an encrypted key-value file store.
type Local struct {
	kv ekv.KeyValue
}

// New opens (or creates) the store under baseDir, encrypted with password.
func New(baseDir, password string) (*Local, error) {
	fs, err := ekv.NewFilestore(baseDir, password)
	if err != nil {
		return nil, errors.WithMessage(err,
			"Failed to open local storage")
	}
	return &Local{kv: fs}, nil
}

// NewInMemory returns a store backed by memory only. Used in tests and for
// sessions that decline persistence.
func NewInMemory() *Local {
	return &Local{kv: ekv.MakeMemstore()}
}

// StoreSettings persists the settings object, replacing any previous value.
func (l *Local) StoreSettings(s interface{}) error {
	return l.kv.SetInterface(settingsKey, s)
}

// LoadSettings reads the stored settings into s. Returns ErrNotFound when
// settings have never been saved.
func (l *Local) LoadSettings(s interface{}) error {
	err := l.kv.GetInterface(settingsKey, s)
	if err != nil {
		if !ekv.Exists(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// StoreGuestTarget persists the guest session's translation target.
func (l *Local) StoreGuestTarget(code string) error {
	return l.kv.SetInterface(guestTargetKey, code)
}

// LoadGuestTarget reads the stored guest target language.
func (l *Local) LoadGuestTarget() (string, error) {
	var code string
	err := l.kv.GetInterface(guestTargetKey, &code)
	if err != nil {
		if !ekv.Exists(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return code, nil
}
