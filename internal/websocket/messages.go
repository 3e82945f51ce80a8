package websocket

// ClientInMessage is the envelope for messages from client to server.
// Types: "vote" | "action" | "sync_state"
type ClientInMessage struct {
	Type          string                 `json:"type"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// ServerEnvelope is the envelope for messages from server to client.
// Type: "event" | "state" | "error"
type ServerEnvelope struct {
	Type          string                 `json:"type"`
	Event         string                 `json:"event,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// Client message types.
const (
	ClientMessageTypeVote      = "vote"
	ClientMessageTypeAction    = "action"
	ClientMessageTypeSyncState = "sync_state"
)

// ServerEventState is the event name of state envelopes.
const ServerEventState = "state"

// Server envelope types.
const (
	ServerTypeEvent = "event"
	ServerTypeState = "state"
	ServerTypeError = "error"
)

// MaxClientMessageTypeLength limits the "type" field to prevent abuse.
const MaxClientMessageTypeLength = 64

// ValidClientMessageTypes are the only allowed values for ClientInMessage.Type.
var ValidClientMessageTypes = map[string]bool{
	ClientMessageTypeVote:      true,
	ClientMessageTypeAction:    true,
	ClientMessageTypeSyncState: true,
}
