package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is the persisted identity a session maps onto. Matchmaking itself
// never reads this table during a sweep; it only consumes the anonymous ID
// and the interest tags captured at search time.
type User struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	TelegramID string         `gorm:"uniqueIndex"` // empty for pure WebSocket users
	Gender     string         `gorm:"size:16"`
	Interests  pq.StringArray `gorm:"type:text[]"`
}

// BeforeCreate generates an anonymous UUID when the ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
