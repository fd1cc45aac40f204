package entity

import (
	"time"
)

// Role controls what a user may do with invitations that are not their own.
// Role hierarchy: RoleUser < RoleAdmin.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin" // reviews, approves, rejects and revokes invitations
)

// User is the profile behind an authenticated request. It is read-only here:
// accounts are created by the login service, this one only reads the role.
// Telegram fields are set for admins who receive review notifications.
type User struct {
	ID               string    `json:"id" bson:"_id"`
	Username         string    `json:"username" bson:"username"`
	Name             string    `json:"name" bson:"name"`
	Email            string    `json:"email" bson:"email"`
	Role             Role      `json:"role" bson:"role"`
	TelegramId       int64     `json:"telegram_id,omitempty" bson:"telegram_id,omitempty"`
	TelegramUsername string    `json:"telegram_username,omitempty" bson:"telegram_username,omitempty"`
	TelegramEnabled  bool      `json:"telegram_enabled" bson:"telegram_enabled"`
	TelegramTopics   []string  `json:"telegram_topics,omitempty" bson:"telegram_topics,omitempty"`
	RegisteredAt     time.Time `json:"registered_at" bson:"registered_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName prefers the full name, then the username, then the id.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	}
	return u.ID
}

// HasTopic checks if the user is subscribed to a given notification topic.
// Convention: empty TelegramTopics = subscribed to all.
// The sentinel value "none" means unsubscribed from everything.
func (u *User) HasTopic(topic string) bool {
	if len(u.TelegramTopics) == 0 {
		return true
	}
	for _, t := range u.TelegramTopics {
		if t == "none" {
			return false
		}
		if t == topic {
			return true
		}
	}
	return false
}
