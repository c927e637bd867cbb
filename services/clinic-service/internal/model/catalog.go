package model

import "github.com/md-rashed-zaman/clinicbook/libs/auth"

// Profile mirrors the identity provider's user record.
type Profile struct {
	ID       string    `json:"id"`
	Role     auth.Role `json:"role"`
	FullName string    `json:"full_name"`
	Phone    string    `json:"phone,omitempty"`
	CenterID string    `json:"center_id,omitempty"`
}

type Center struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

type TherapyType struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DurationDays int    `json:"duration_days"`
	Description  string `json:"description,omitempty"`
}
