////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"strings"

	"github.com/forPelevin/gomoji"
)

// isEmojiOnly reports whether text consists of nothing but emoji and
// whitespace. Such turns are never sent to speech synthesis.
func isEmojiOnly(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return strings.TrimSpace(gomoji.RemoveEmojis(text)) == ""
}
