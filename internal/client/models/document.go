package models

import "time"

// Document is the metadata record of an uploaded PDF. The client lists and
// deletes documents; binary transfer is handled elsewhere.
type Document struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Size           int64     `json:"size"`
	URL            string    `json:"url"`
	ConversationID *int64    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}
