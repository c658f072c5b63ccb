// Package models contains the data types shared by the conversation core and
// the views that render it.
package models

import "time"

// Role identifies who authored a message.
type Role string

// Message roles
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Fixed texts used by the conversation.
const (
	GreetingText = "Greetings! I am your personal guide to the vibrant world of Karnataka's mural art. " +
		"Feel free to ask me anything, or ask me to show you a picture of something, like 'a Chittara wall painting'."
	ApologyText = "Sorry, I encountered an error."
)

// MessageID uniquely identifies a message within one conversation.
type MessageID uint64

// Message is a single entry in the conversation list.
//
// ImageRef and Error are never both set. ImagePending is true only while the
// image request for this message is in flight.
type Message struct {
	ID           MessageID `json:"id"`
	Role         Role      `json:"role"`
	Text         string    `json:"text"`
	ImageRef     string    `json:"imageRef,omitempty"`
	ImagePending bool      `json:"imagePending,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasImage reports whether the message carries a finished image.
func (m Message) HasImage() bool {
	return m.ImageRef != ""
}

// Failed reports whether the message carries a failure detail.
func (m Message) Failed() bool {
	return m.Error != ""
}

// Snapshot is a point-in-time copy of a conversation for rendering.
type Snapshot struct {
	Messages []Message `json:"messages"`
	InFlight bool      `json:"inFlight"`
}

// Last returns the most recent message and false when the snapshot is empty.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LatestImage returns the most recently finished image reference.
func (s Snapshot) LatestImage() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].ImageRef != "" {
			return s.Messages[i].ImageRef, true
		}
	}
	return "", false
}

// PendingImage reports whether any message is waiting for its image.
func (s Snapshot) PendingImage() bool {
	for _, m := range s.Messages {
		if m.ImagePending {
			return true
		}
	}
	return false
}
