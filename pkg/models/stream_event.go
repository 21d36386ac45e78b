package models

// ============================================================================
// Chat stream frames
// ============================================================================

// StreamTerminator is written as the last data line of every chat stream.
const StreamTerminator = "[DONE]"

// StreamEventType represents the type of a streamed chat frame.
type StreamEventType string

const (
	StreamEventStatus      StreamEventType = "status"
	StreamEventExplanation StreamEventType = "explanation"
	StreamEventSuggestions StreamEventType = "suggestions"
	StreamEventDone        StreamEventType = "done"
	StreamEventError       StreamEventType = "error"
)

// StatusType is the phase reported by a status frame.
type StatusType string

const (
	StatusIdle    StatusType = "idle"
	StatusWorking StatusType = "working"
	StatusSuccess StatusType = "success"
	StatusError   StatusType = "error"
)

// StatusPayload is the body of a status frame.
type StatusPayload struct {
	Type    StatusType `json:"type"`
	Content string     `json:"content"`
}

// StreamEvent is one frame of the chat stream.
// Only the fields relevant to Type are populated.
type StreamEvent struct {
	Type        StreamEventType `json:"type"`
	Status      *StatusPayload  `json:"status,omitempty"`
	Content     string          `json:"content,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// NewStatusEvent creates a status frame.
func NewStatusEvent(status StatusType, content string) StreamEvent {
	return StreamEvent{Type: StreamEventStatus, Status: &StatusPayload{Type: status, Content: content}}
}

// NewExplanationEvent creates an explanation chunk frame.
func NewExplanationEvent(content string) StreamEvent {
	return StreamEvent{Type: StreamEventExplanation, Content: content}
}

// NewSuggestionsEvent creates a follow-up suggestions frame.
func NewSuggestionsEvent(suggestions []string) StreamEvent {
	return StreamEvent{Type: StreamEventSuggestions, Suggestions: suggestions}
}

// NewDoneEvent creates a done event.
func NewDoneEvent() StreamEvent {
	return StreamEvent{Type: StreamEventDone}
}

// NewErrorEvent creates the legacy error frame older clients listen for.
func NewErrorEvent(err string) StreamEvent {
	return StreamEvent{Type: StreamEventError, Error: err}
}
