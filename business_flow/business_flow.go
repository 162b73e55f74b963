// Package businessflow contains the business logic for the application.
package businessflow

import (
	"encoding/json"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information recorded on counter
// history entries
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// ToJSON serializes the metadata for storage in a history entry. Returns an
// empty JSON object on marshal failure so a bad metadata value never blocks
// the mutation itself.
func (cm *ClientMetadata) ToJSON() json.RawMessage {
	if cm == nil {
		return json.RawMessage(`{}`)
	}
	b, err := json.Marshal(cm)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// MutationNotifier is invoked synchronously after every successful counter
// mutation. The WebSocket broadcast dispatcher implements it; flows call it
// so the causal link between "mutation committed" and "broadcast attempted"
// stays explicit.
type MutationNotifier interface {
	NotifyMutation()
}

// NoopNotifier is the default notifier used until a real dispatcher is wired
type NoopNotifier struct{}

func (NoopNotifier) NotifyMutation() {}
