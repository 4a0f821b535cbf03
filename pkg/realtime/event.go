package realtime

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Client event types (sent from client to server).
const (
	EventTypeSessionUpdate          = "session.update"
	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeInputAudioBufferCommit = "input_audio_buffer.commit"
	EventTypeInputAudioBufferClear  = "input_audio_buffer.clear"
	EventTypeConversationItemCreate = "conversation.item.create"
	EventTypeResponseCreate         = "response.create"
	EventTypeResponseCancel         = "response.cancel"
)

// Server event types (sent from server to client).
const (
	EventTypeError = "error"

	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	EventTypeInputAudioBufferCommitted     = "input_audio_buffer.committed"
	EventTypeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	EventTypeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"

	EventTypeConversationItemInputAudioTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"

	EventTypeResponseCreated = "response.created"
	EventTypeResponseDone    = "response.done"

	EventTypeResponseTextDelta            = "response.text.delta"
	EventTypeResponseAudioDelta           = "response.audio.delta"
	EventTypeResponseAudioDone            = "response.audio.done"
	EventTypeResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	EventTypeResponseAudioTranscriptDone  = "response.audio_transcript.done"

	// Names used by the GA API for the same events.
	EventTypeResponseOutputTextDelta            = "response.output_text.delta"
	EventTypeResponseOutputAudioDelta           = "response.output_audio.delta"
	EventTypeResponseOutputAudioDone            = "response.output_audio.done"
	EventTypeResponseOutputAudioTranscriptDelta = "response.output_audio_transcript.delta"
	EventTypeResponseOutputAudioTranscriptDone  = "response.output_audio_transcript.done"
)

// generateEventID generates a unique event ID.
func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// ClientEvent is an event sent to the server. The set of implementations
// is closed; each marshals itself with its "type" field.
type ClientEvent interface {
	EventType() string
	clientEvent()
}

// SessionUpdate updates the session configuration.
type SessionUpdate struct {
	EventID string         `json:"event_id,omitzero"`
	Session *SessionConfig `json:"session"`
}

// InputAudioAppend appends one wire frame (base64 PCM16) to the input
// audio buffer.
type InputAudioAppend struct {
	EventID string `json:"event_id,omitzero"`
	Audio   string `json:"audio"`
}

// InputAudioCommit commits the input audio buffer as a user turn.
type InputAudioCommit struct {
	EventID string `json:"event_id,omitzero"`
}

// InputAudioClear discards the input audio buffer.
type InputAudioClear struct {
	EventID string `json:"event_id,omitzero"`
}

// ConversationItemCreate adds an item to the conversation.
type ConversationItemCreate struct {
	EventID string           `json:"event_id,omitzero"`
	Item    ConversationItem `json:"item"`
}

// ResponseCreate asks the model to respond.
type ResponseCreate struct {
	EventID  string                 `json:"event_id,omitzero"`
	Response *ResponseCreateOptions `json:"response,omitzero"`
}

// ResponseCancel cancels the in-progress response.
type ResponseCancel struct {
	EventID string `json:"event_id,omitzero"`
}

func (SessionUpdate) EventType() string          { return EventTypeSessionUpdate }
func (InputAudioAppend) EventType() string       { return EventTypeInputAudioBufferAppend }
func (InputAudioCommit) EventType() string       { return EventTypeInputAudioBufferCommit }
func (InputAudioClear) EventType() string        { return EventTypeInputAudioBufferClear }
func (ConversationItemCreate) EventType() string { return EventTypeConversationItemCreate }
func (ResponseCreate) EventType() string         { return EventTypeResponseCreate }
func (ResponseCancel) EventType() string         { return EventTypeResponseCancel }

func (SessionUpdate) clientEvent()          {}
func (InputAudioAppend) clientEvent()       {}
func (InputAudioCommit) clientEvent()       {}
func (InputAudioClear) clientEvent()        {}
func (ConversationItemCreate) clientEvent() {}
func (ResponseCreate) clientEvent()         {}
func (ResponseCancel) clientEvent()         {}

// marshalTyped marshals payload with its "type" field first.
func marshalTyped(typ string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	head, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+len(head)+10)
	out = append(out, `{"type":`...)
	out = append(out, head...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// The payloads are marshaled through an alias so MarshalJSON does not
// recurse.

func (e SessionUpdate) MarshalJSON() ([]byte, error) {
	type alias SessionUpdate
	return marshalTyped(e.EventType(), alias(e))
}

func (e InputAudioAppend) MarshalJSON() ([]byte, error) {
	type alias InputAudioAppend
	return marshalTyped(e.EventType(), alias(e))
}

func (e InputAudioCommit) MarshalJSON() ([]byte, error) {
	type alias InputAudioCommit
	return marshalTyped(e.EventType(), alias(e))
}

func (e InputAudioClear) MarshalJSON() ([]byte, error) {
	type alias InputAudioClear
	return marshalTyped(e.EventType(), alias(e))
}

func (e ConversationItemCreate) MarshalJSON() ([]byte, error) {
	type alias ConversationItemCreate
	return marshalTyped(e.EventType(), alias(e))
}

func (e ResponseCreate) MarshalJSON() ([]byte, error) {
	type alias ResponseCreate
	return marshalTyped(e.EventType(), alias(e))
}

func (e ResponseCancel) MarshalJSON() ([]byte, error) {
	type alias ResponseCancel
	return marshalTyped(e.EventType(), alias(e))
}

// userText builds a user message item with a single text block.
func userText(text string) ConversationItem {
	return ConversationItem{
		Type:    "message",
		Role:    "user",
		Content: []ContentPart{{Type: "input_text", Text: text}},
	}
}

// ServerEvent is an event received from the server. The set of
// implementations is closed; unrecognized types decode as *UnknownEvent.
type ServerEvent interface {
	EventType() string
	// RawJSON returns the message exactly as received.
	RawJSON() []byte
	serverEvent()
}

// EventHeader carries the fields shared by every server event.
type EventHeader struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitzero"`

	raw []byte
}

func (h *EventHeader) EventType() string { return h.Type }
func (h *EventHeader) RawJSON() []byte   { return h.raw }
func (h *EventHeader) serverEvent()      {}

// SessionCreated is sent once the remote session exists.
type SessionCreated struct {
	EventHeader
	Session SessionResource `json:"session"`
}

// SessionUpdated acknowledges a SessionUpdate.
type SessionUpdated struct {
	EventHeader
	Session SessionResource `json:"session"`
}

// ErrorEvent reports a server-side error. The session stays usable.
type ErrorEvent struct {
	EventHeader
	Error EventError `json:"error"`
}

// SpeechStarted is sent when server VAD detects speech.
type SpeechStarted struct {
	EventHeader
	AudioStartMs int    `json:"audio_start_ms,omitzero"`
	ItemID       string `json:"item_id,omitzero"`
}

// SpeechStopped is sent when server VAD detects the end of speech.
type SpeechStopped struct {
	EventHeader
	AudioEndMs int    `json:"audio_end_ms,omitzero"`
	ItemID     string `json:"item_id,omitzero"`
}

// InputCommitted acknowledges a committed input buffer.
type InputCommitted struct {
	EventHeader
	ItemID         string `json:"item_id,omitzero"`
	PreviousItemID string `json:"previous_item_id,omitzero"`
}

// InputTranscriptionCompleted carries the transcript of a user turn.
type InputTranscriptionCompleted struct {
	EventHeader
	ItemID     string `json:"item_id,omitzero"`
	Transcript string `json:"transcript"`
}

// ResponseCreated is sent when the model starts a response.
type ResponseCreated struct {
	EventHeader
	Response ResponseResource `json:"response"`
}

// ResponseDone is sent when a response finishes.
type ResponseDone struct {
	EventHeader
	Response ResponseResource `json:"response"`
}

// ResponseAudioDelta carries a chunk of response audio as base64 PCM16.
// Over WebRTC the audio itself arrives on the media track and this event
// only marks that the model is speaking.
type ResponseAudioDelta struct {
	EventHeader
	ResponseID string `json:"response_id,omitzero"`
	ItemID     string `json:"item_id,omitzero"`
	Delta      string `json:"delta,omitzero"`
}

// Audio decodes Delta to little-endian PCM16 bytes.
func (e *ResponseAudioDelta) Audio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Delta)
}

// ResponseAudioDone is sent when the model stops speaking.
type ResponseAudioDone struct {
	EventHeader
	ResponseID string `json:"response_id,omitzero"`
	ItemID     string `json:"item_id,omitzero"`
}

// ResponseTranscriptDelta carries incremental transcript of response audio.
type ResponseTranscriptDelta struct {
	EventHeader
	ResponseID string `json:"response_id,omitzero"`
	Delta      string `json:"delta"`
}

// ResponseTranscriptDone carries the final transcript of response audio.
type ResponseTranscriptDone struct {
	EventHeader
	ResponseID string `json:"response_id,omitzero"`
	Transcript string `json:"transcript"`
}

// ResponseTextDelta carries incremental response text.
type ResponseTextDelta struct {
	EventHeader
	ResponseID string `json:"response_id,omitzero"`
	Delta      string `json:"delta"`
}

// UnknownEvent is any event type this package does not model.
type UnknownEvent struct {
	EventHeader
}

var errMissingType = errors.New("missing type field")

// ParseServerEvent decodes one control-channel message.
func ParseServerEvent(data []byte) (ServerEvent, error) {
	var head EventHeader
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("realtime: parse event: %w", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("realtime: parse event: %w", errMissingType)
	}

	var ev interface {
		ServerEvent
		header() *EventHeader
	}
	switch head.Type {
	case EventTypeSessionCreated:
		ev = &SessionCreated{}
	case EventTypeSessionUpdated:
		ev = &SessionUpdated{}
	case EventTypeError:
		ev = &ErrorEvent{}
	case EventTypeInputAudioBufferSpeechStarted:
		ev = &SpeechStarted{}
	case EventTypeInputAudioBufferSpeechStopped:
		ev = &SpeechStopped{}
	case EventTypeInputAudioBufferCommitted:
		ev = &InputCommitted{}
	case EventTypeConversationItemInputAudioTranscriptionCompleted:
		ev = &InputTranscriptionCompleted{}
	case EventTypeResponseCreated:
		ev = &ResponseCreated{}
	case EventTypeResponseDone:
		ev = &ResponseDone{}
	case EventTypeResponseAudioDelta, EventTypeResponseOutputAudioDelta:
		ev = &ResponseAudioDelta{}
	case EventTypeResponseAudioDone, EventTypeResponseOutputAudioDone:
		ev = &ResponseAudioDone{}
	case EventTypeResponseAudioTranscriptDelta, EventTypeResponseOutputAudioTranscriptDelta:
		ev = &ResponseTranscriptDelta{}
	case EventTypeResponseAudioTranscriptDone, EventTypeResponseOutputAudioTranscriptDone:
		ev = &ResponseTranscriptDone{}
	case EventTypeResponseTextDelta, EventTypeResponseOutputTextDelta:
		ev = &ResponseTextDelta{}
	default:
		head.raw = data
		return &UnknownEvent{EventHeader: head}, nil
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("realtime: parse %s: %w", head.Type, err)
	}
	ev.header().raw = data
	return ev, nil
}

func (h *EventHeader) header() *EventHeader { return h }
