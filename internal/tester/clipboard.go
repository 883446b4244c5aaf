package tester

import (
	"encoding/json"
	"fmt"
	"sync"
)

type Clipboard interface {
	WriteText(text string) error
}

type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationWarning NotificationLevel = "warning"
)

type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
	Text    string            `json:"text,omitempty"`
}

// CopyLastPayload copies the last payload as indented JSON. Every outcome,
// including a failed copy, is reported as a notification.
func (s *Session) CopyLastPayload(cb Clipboard) Notification {
	s.mu.Lock()
	payload := s.lastPayload
	s.mu.Unlock()
	if payload == nil {
		return Notification{Level: NotificationWarning, Message: "Nothing to copy yet"}
	}
	if cb == nil {
		return Notification{Level: NotificationWarning, Message: "Clipboard is not available"}
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return Notification{Level: NotificationWarning, Message: fmt.Sprintf("Failed to copy payload: %v", err)}
	}
	if err := cb.WriteText(string(data)); err != nil {
		return Notification{Level: NotificationWarning, Message: fmt.Sprintf("Failed to copy payload: %v", err)}
	}
	return Notification{Level: NotificationInfo, Message: "Payload copied", Text: string(data)}
}

// BufferClipboard keeps the copied text so it can be handed back over the
// API, where the browser owns the real clipboard.
type BufferClipboard struct {
	mu   sync.Mutex
	text string
}

func (b *BufferClipboard) WriteText(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	return nil
}

func (b *BufferClipboard) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}
