package models

import (
	"encoding/json"
	"time"
)

// Envelope event names exchanged over the chat socket.
const (
	EventSendMessage    = "sendMessage"
	EventReceiveMessage = "receiveMessage"
)

// Envelope is the JSON frame exchanged over the websocket. Data is kept raw
// because inbound payload shapes are client-controlled and validated later in
// the pipeline.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SetData marshals v into the envelope's data field.
func (e *Envelope) SetData(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e.Data = data
	return nil
}

// ChatMessage is a chat message. ID and Timestamp are assigned by the store
// on insert; IsPhishing and IsSpam are resolved by the classifier before the
// message is persisted. A ChatMessage is broadcast only once all of those
// are set (the canonical record).
type ChatMessage struct {
	ID         string    `json:"id"`
	User       string    `json:"user"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	IsPhishing bool      `json:"is_phishing"`
	IsSpam     bool      `json:"is_spam"`
}
