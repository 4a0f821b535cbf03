package realtime

import "encoding/json"

// Models supported by the OpenAI Realtime API.
const (
	// ModelGPTRealtime is the generally available realtime model.
	ModelGPTRealtime = "gpt-realtime"
	// ModelGPT4oRealtimePreview is the GPT-4o realtime preview model.
	ModelGPT4oRealtimePreview = "gpt-4o-realtime-preview"
	// ModelGPT4oMiniRealtimePreview is the GPT-4o mini realtime preview model.
	ModelGPT4oMiniRealtimePreview = "gpt-4o-mini-realtime-preview"
)

// DefaultModel is used when no model is configured.
const DefaultModel = ModelGPT4oRealtimePreview

// AudioFormatPCM16 is 16-bit PCM audio at 24kHz, mono, little-endian.
const AudioFormatPCM16 = "pcm16"

// Voice options for audio output.
const (
	VoiceAlloy   = "alloy"
	VoiceAsh     = "ash"
	VoiceBallad  = "ballad"
	VoiceCoral   = "coral"
	VoiceEcho    = "echo"
	VoiceSage    = "sage"
	VoiceShimmer = "shimmer"
	VoiceVerse   = "verse"
)

// VAD modes for turn detection.
const (
	VADServerVAD   = "server_vad"
	VADSemanticVAD = "semantic_vad"
)

// Modality types.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// SessionConfig contains configuration for updating session parameters.
type SessionConfig struct {
	// Modalities specifies the output modalities.
	// Default: ["text", "audio"]
	Modalities []string `json:"modalities,omitzero"`

	// Instructions is the system prompt.
	Instructions string `json:"instructions,omitzero"`

	// Voice is the voice ID for audio output.
	Voice string `json:"voice,omitzero"`

	// InputAudioFormat specifies the input audio format.
	// Default: pcm16
	InputAudioFormat string `json:"input_audio_format,omitzero"`

	// OutputAudioFormat specifies the output audio format.
	// Default: pcm16
	OutputAudioFormat string `json:"output_audio_format,omitzero"`

	// InputAudioTranscription enables transcription of user audio.
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitzero"`

	// TurnDetection configures voice activity detection.
	// Use nil to keep the current setting.
	TurnDetection *TurnDetection `json:"turn_detection,omitzero"`

	// TurnDetectionDisabled sends "turn_detection": null, which disables
	// server-side VAD. Turns are then ended with Session.CommitInput.
	TurnDetectionDisabled bool `json:"-"`

	// Temperature controls randomness (0.6-1.2).
	Temperature *float64 `json:"temperature,omitzero"`
}

// MarshalJSON sends an explicit null turn_detection when
// TurnDetectionDisabled is set.
func (s SessionConfig) MarshalJSON() ([]byte, error) {
	type alias SessionConfig
	if !s.TurnDetectionDisabled {
		return json.Marshal(alias(s))
	}
	return json.Marshal(struct {
		alias
		TurnDetection *TurnDetection `json:"turn_detection"`
	}{alias: alias(s)})
}

// TranscriptionConfig configures input audio transcription.
type TranscriptionConfig struct {
	// Model is the transcription model to use.
	// Default: whisper-1
	Model string `json:"model,omitzero"`
}

// TurnDetection configures voice activity detection.
type TurnDetection struct {
	// Type is the VAD mode: "server_vad" or "semantic_vad".
	Type string `json:"type,omitzero"`

	// Threshold is the VAD sensitivity (0.0-1.0).
	Threshold float64 `json:"threshold,omitzero"`

	// PrefixPaddingMs is the padding before speech start (ms).
	PrefixPaddingMs int `json:"prefix_padding_ms,omitzero"`

	// SilenceDurationMs is the silence duration to detect end of speech (ms).
	SilenceDurationMs int `json:"silence_duration_ms,omitzero"`

	// CreateResponse specifies whether to automatically create a response
	// when VAD detects end of speech.
	CreateResponse *bool `json:"create_response,omitzero"`
}

// ResponseCreateOptions overrides session settings for one response.
type ResponseCreateOptions struct {
	Modalities   []string `json:"modalities,omitzero"`
	Instructions string   `json:"instructions,omitzero"`
	Voice        string   `json:"voice,omitzero"`
}

// SessionResource represents the session state returned by the server.
type SessionResource struct {
	ID            string         `json:"id,omitzero"`
	Object        string         `json:"object,omitzero"`
	Model         string         `json:"model,omitzero"`
	ExpiresAt     int64          `json:"expires_at,omitzero"`
	Modalities    []string       `json:"modalities,omitzero"`
	Instructions  string         `json:"instructions,omitzero"`
	Voice         string         `json:"voice,omitzero"`
	TurnDetection *TurnDetection `json:"turn_detection,omitzero"`
}

// ConversationItem represents an item in the conversation.
type ConversationItem struct {
	ID      string        `json:"id,omitzero"`
	Type    string        `json:"type,omitzero"` // "message"
	Status  string        `json:"status,omitzero"`
	Role    string        `json:"role,omitzero"` // "user", "assistant", "system"
	Content []ContentPart `json:"content,omitzero"`
}

// ContentPart represents a part of message content.
type ContentPart struct {
	Type       string `json:"type,omitzero"` // "input_text", "input_audio", "text", "audio"
	Text       string `json:"text,omitzero"`
	Audio      string `json:"audio,omitzero"`
	Transcript string `json:"transcript,omitzero"`
}

// ResponseResource represents a response from the model.
type ResponseResource struct {
	ID            string             `json:"id,omitzero"`
	Status        string             `json:"status,omitzero"` // "in_progress", "completed", "cancelled", "incomplete", "failed"
	StatusDetails *StatusDetails     `json:"status_details,omitzero"`
	Output        []ConversationItem `json:"output,omitzero"`
	Usage         *Usage             `json:"usage,omitzero"`
}

// StatusDetails contains details about the response status.
type StatusDetails struct {
	Type   string      `json:"type,omitzero"`
	Reason string      `json:"reason,omitzero"`
	Error  *EventError `json:"error,omitzero"`
}

// Usage contains token usage information.
type Usage struct {
	TotalTokens  int `json:"total_tokens,omitzero"`
	InputTokens  int `json:"input_tokens,omitzero"`
	OutputTokens int `json:"output_tokens,omitzero"`
}
