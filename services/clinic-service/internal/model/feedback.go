package model

import "time"

type Feedback struct {
	ID               string    `json:"id"`
	AppointmentID    string    `json:"appointment_id"`
	PatientID        string    `json:"patient_id"`
	Rating           int       `json:"rating"`
	Symptoms         string    `json:"symptoms"`
	ImprovementNotes string    `json:"improvement_notes"`
	CreatedAt        time.Time `json:"created_at"`
}

type FeedbackFilter struct {
	PractitionerID string
	Limit          int
}
