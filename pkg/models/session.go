package models

// Session is the per-user conversation state of the bot.
type Session struct {
	State      string    `json:"state"`
	Draft      RideInput `json:"draft"`
	EditRideID int64     `json:"edit_ride_id,omitempty"`
	EditField  string    `json:"edit_field,omitempty"`
}
