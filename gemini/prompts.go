////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package gemini

import "fmt"

// translatePrompt instructs the model to detect and translate in one call,
// emitting the translationResult JSON shape. With no target the session's
// fixed Serbian/Turkish pair is toggled.
func translatePrompt(text, target string) string {
	if target != "" {
		return fmt.Sprintf(`Analyze the following text.
1. Detect the language code of the input text (e.g., 'sr', 'en', 'tr', 'de').
2. Translate the text to the target language code: '%s'.
Respond with JSON: {"detectedSource": ..., "translatedText": ...}.

Text: %q`, target, text)
	}

	return fmt.Sprintf(`Analyze the following text.
1. Detect whether the text is in Serbian ('sr') or Turkish ('tr').
2. Translate the text to the OTHER language (if sr -> tr, if tr -> sr).
3. If the language is ambiguous, default to Serbian as source.
Respond with JSON: {"detectedSource": ..., "translatedText": ...}.

Text: %q`, text)
}

// transcribePrompt instructs the model to transcribe the attached audio,
// detect its language, and translate the transcript.
func transcribePrompt(target string) string {
	if target != "" {
		return fmt.Sprintf(`Listen to the provided audio.
1. Transcribe the speech exactly.
2. Detect the language code of the speech.
3. Translate the transcription to the target language code: '%s'.
Respond with JSON:
{"detectedSource": ..., "originalText": ..., "translatedText": ...}.`, target)
	}

	return `Listen to the provided audio carefully.
1. Transcribe the speech exactly as it is spoken.
2. Detect whether the speech is in Serbian ('sr') or Turkish ('tr').
3. Translate the transcribed text to the OTHER language (if sr -> tr, if tr -> sr).
Respond with JSON:
{"detectedSource": ..., "originalText": ..., "translatedText": ...}.`
}
