package models

import "time"

// User is keyed by the Telegram user id.
type User struct {
	ID        int64     `json:"id" bson:"_id"`
	Username  string    `json:"username" bson:"username"`
	FullName  string    `json:"full_name" bson:"full_name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Handle renders "@username" or an empty string.
func (u User) Handle() string {
	return Handle(u.Username)
}

func Handle(username string) string {
	if username == "" {
		return ""
	}
	return "@" + username
}
