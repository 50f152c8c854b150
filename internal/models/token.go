package models

import "time"

// DeviceToken associates an Expo push token with a user's device. A user may
// hold several tokens (one per installed device); tokens are upserted on
// registration and replaced when the device re-registers.
type DeviceToken struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Token     string    `db:"token" json:"token"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
