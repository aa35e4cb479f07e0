package notifications

import (
	"errors"
	"time"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Notification is a user-facing message dropped by the progression
// engine. Display only, nothing reads these back for enforcement.
type Notification struct {
	ID        int               `json:"id"`
	UserID    string            `json:"userId"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"createdAt"`
}

type ListPageParams struct {
	UserID string
	Page   int
	Size   int
}
