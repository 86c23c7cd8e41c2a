package domain

import "time"

// The workflow tables below belong to the orchestrating application. The
// consistency validator reads them and applies bounded repairs; nothing
// else in this subsystem touches them.

// Application is the parent record of one processed job application.
type Application struct {
	ID               string    `json:"id" db:"id"`
	WorkflowID       string    `json:"workflow_id" db:"workflow_id"`
	Status           string    `json:"status" db:"status"`
	AnalysisComplete bool      `json:"analysis_complete" db:"analysis_complete"`
	DocumentsReady   bool      `json:"documents_ready" db:"documents_ready"`
	Notified         bool      `json:"notified" db:"notified"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Document is a generated artifact belonging to an application.
type Document struct {
	ID            string    `json:"id" db:"id"`
	ApplicationID string    `json:"application_id" db:"application_id"`
	Kind          string    `json:"kind" db:"kind"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Notification is the delivery log row for an outbound message.
type Notification struct {
	ID            string    `json:"id" db:"id"`
	ApplicationID string    `json:"application_id" db:"application_id"`
	Channel       string    `json:"channel" db:"channel"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// AnalysisResult backs an application's analysis_complete flag.
type AnalysisResult struct {
	ID            string    `json:"id" db:"id"`
	ApplicationID string    `json:"application_id" db:"application_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
