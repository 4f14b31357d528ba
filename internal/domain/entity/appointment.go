package entity

import "time"

type Appointment struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	ServiceID  string    `json:"service_id"`
	UserID     string    `json:"user_id"`
	StartsAt   time.Time `json:"starts_at"`
	Status     string    `json:"status"` // "pending", "confirmed", "cancelled"
	CreatedAt  time.Time `json:"created_at"`
}
