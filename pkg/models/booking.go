package models

import "time"

type Booking struct {
	ID             int64     `json:"id" bson:"_id"`
	RideID         int64     `json:"ride_id" bson:"ride_id"`
	PassengerID    int64     `json:"passenger_id" bson:"passenger_id"`
	Notified       bool      `json:"notified" bson:"notified"`
	NotifyAttempts int       `json:"notify_attempts" bson:"notify_attempts"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`

	// populated by joins
	Destination       string `json:"destination,omitempty" bson:"-"`
	DriverID          int64  `json:"driver_id,omitempty" bson:"-"`
	PassengerName     string `json:"passenger_name,omitempty" bson:"-"`
	PassengerUsername string `json:"passenger_username,omitempty" bson:"-"`
}
