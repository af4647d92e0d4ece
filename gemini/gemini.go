////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package gemini adapts the Gemini generative REST API to the engine's
// Translator and Synthesizer interfaces. One generateContent call performs
// language detection and translation atomically; a second model renders
// speech. Every request is pushed through a shared rate limiter so a burst
// of turns cannot trip API quotas.
package gemini

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/thedevsaddam/gojsonq"
	"go.uber.org/ratelimit"

	"gitlab.com/chatbridge/client/chat"
)

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	textModel       = "gemini-2.5-flash"
	speechModel     = "gemini-2.5-flash-preview-tts"

	// requestsPerSecond caps the request rate to the API.
	requestsPerSecond = 2

	requestTimeout = 45 * time.Second
)

// Client calls the Gemini REST API. It implements chat.Translator and
// chat.Synthesizer.
type Client struct {
	apiKey   string
	endpoint string
	hc       *http.Client
	rl       ratelimit.Limiter
}

// New returns a client for the production endpoint.
func New(apiKey string) *Client {
	return NewWithEndpoint(apiKey, defaultEndpoint)
}

// NewWithEndpoint returns a client aimed at a custom endpoint. Used by tests
// to point at a local server.
func NewWithEndpoint(apiKey, endpoint string) *Client {
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		hc:       &http.Client{Timeout: requestTimeout},
		rl:       ratelimit.New(requestsPerSecond, ratelimit.WithoutSlack),
	}
}

// request mirrors the generateContent request body.
type request struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType   string        `json:"responseMimeType,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

// translationResult is the JSON object the text prompts instruct the model
// to emit.
type translationResult struct {
	DetectedSource string `json:"detectedSource"`
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
}

// TranslateText detects the language of text and translates it. An empty
// target requests the fixed Serbian/Turkish toggle.
func (c *Client) TranslateText(text, target string) (
	*chat.Translation, error) {

	req := request{
		Contents: []content{{Parts: []part{
			{Text: translatePrompt(text, target)},
		}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
		},
	}

	result, err := c.generateJSON(textModel, req)
	if err != nil {
		return nil, err
	}

	return &chat.Translation{
		DetectedSource: result.DetectedSource,
		TranslatedText: result.TranslatedText,
	}, nil
}

// TranscribeAndTranslate transcribes audio, detects its language, and
// translates the transcript. Target semantics match TranslateText.
func (c *Client) TranscribeAndTranslate(audio []byte, mimeType,
	target string) (*chat.Translation, error) {

	if mimeType == "" {
		mimeType = "audio/webm"
	}

	req := request{
		Contents: []content{{Parts: []part{
			{InlineData: &inlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(audio),
			}},
			{Text: transcribePrompt(target)},
		}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
		},
	}

	result, err := c.generateJSON(speechToTextModel(), req)
	if err != nil {
		return nil, err
	}

	if result.DetectedSource == "" {
		result.DetectedSource = "sr"
	}

	return &chat.Translation{
		DetectedSource: result.DetectedSource,
		Transcript:     result.OriginalText,
		TranslatedText: result.TranslatedText,
	}, nil
}

// speechToTextModel returns the model used for audio understanding. The
// text model is multimodal, so they are currently the same.
func speechToTextModel() string { return textModel }

// Synthesize renders text as speech with the given prebuilt voice. A nil
// result with nil error means the model declined to produce audio; the
// caller treats that as a silent skip.
func (c *Client) Synthesize(text, voiceName string) ([]byte, error) {
	if voiceName == "" {
		voiceName = "Kore"
	}

	req := request{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoice{VoiceName: voiceName},
				},
			},
		},
	}

	body, err := c.post(speechModel, req)
	if err != nil {
		return nil, err
	}

	jq := gojsonq.New().FromString(string(body))
	data, ok := jq.Find(
		"candidates.[0].content.parts.[0].inlineData.data").(string)
	if !ok || data == "" {
		// The model sometimes answers with text instead of audio, e.g.
		// for content it refuses to voice.
		if msg, isText := gojsonq.New().FromString(string(body)).
			Find("candidates.[0].content.parts.[0].text").(string); isText {
			jww.WARN.Printf(
				"[CB] Synthesizer returned text instead of audio: %s", msg)
		}
		return nil, nil
	}

	samples, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.WithMessage(err, "Malformed audio payload")
	}
	return samples, nil
}

// generateJSON posts a JSON-mode request and parses the structured result
// the prompt asked for out of the first candidate part.
func (c *Client) generateJSON(model string, req request) (
	*translationResult, error) {

	body, err := c.post(model, req)
	if err != nil {
		return nil, err
	}

	text, ok := gojsonq.New().FromString(string(body)).
		Find("candidates.[0].content.parts.[0].text").(string)
	if !ok || text == "" {
		return nil, errors.New("response contains no candidate text")
	}

	var result translationResult
	if err = json.Unmarshal([]byte(text), &result); err != nil {
		return nil, errors.WithMessage(err,
			"Model emitted malformed result JSON")
	}
	return &result, nil
}

// post sends one generateContent call, honoring the rate limiter.
func (c *Client) post(model string, req request) ([]byte, error) {
	c.rl.Take()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := c.endpoint + "/models/" + model + ":generateContent?key=" + c.apiKey

	httpReq, err := http.NewRequest(http.MethodPost, url,
		bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, errors.WithMessage(err, "Gemini request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to read Gemini response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("Gemini returned %s: %s",
			resp.Status, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
