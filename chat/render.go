////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import "strconv"

// RenderVerdict is the display decision for one message in one viewer's
// conversation view.
type RenderVerdict uint8

const (
	// RenderHidden suppresses the message entirely.
	RenderHidden RenderVerdict = iota

	// RenderOriginal shows the message as the sender's own words.
	RenderOriginal

	// RenderTranslation shows the message as a translation bubble.
	RenderTranslation

	// RenderSystem shows the message as a centered system notice,
	// attributed to neither side.
	RenderSystem
)

// String adheres to the fmt.Stringer interface.
func (rv RenderVerdict) String() string {
	switch rv {
	case RenderHidden:
		return "hidden"
	case RenderOriginal:
		return "original"
	case RenderTranslation:
		return "translation"
	case RenderSystem:
		return "system"
	default:
		return "INVALID RENDER VERDICT: " + strconv.Itoa(int(rv))
	}
}

// DecideRender maps a message to its display verdict for the given viewer.
//
// A shared conversation (direct or room) is asymmetric: the viewer always
// reads their own statements verbatim and everyone else's statements as the
// translation into their native language, so each turn produces exactly one
// visible bubble per participant. In personal mode both turns of a pair are
// shown chronologically.
func DecideRender(msg Message, viewerID string, shared bool,
	nativeLanguage string) RenderVerdict {

	if msg.SenderID == SystemSender {
		return RenderSystem
	}

	if !shared {
		if msg.IsOriginal {
			return RenderOriginal
		}
		return RenderTranslation
	}

	if msg.SenderID == viewerID {
		if msg.IsOriginal {
			return RenderOriginal
		}
		return RenderHidden
	}

	if !msg.IsOriginal && msg.Language == nativeLanguage {
		return RenderTranslation
	}

	return RenderHidden
}
