package types

import "time"

// Incident statuses.
const (
	IncidentPending  = "pending"
	IncidentInReview = "in_review"
	IncidentResolved = "resolved"
)

// Incident is an operational issue reported against a transit line.
type Incident struct {
	// ID is the unique identifier of the incident.
	ID string `json:"id" db:"id"`

	// ReportNumber is the externally visible, unique report reference.
	ReportNumber string `json:"reportNumber" db:"report_number"`

	// Type classifies the incident (e.g. "delay", "breakdown").
	Type string `json:"type" db:"type"`

	Description string `json:"description" db:"description"`

	// Line and Station locate the incident in the network.
	Line    string `json:"line" db:"line"`
	Station string `json:"station" db:"station"`

	// OccurredAt defaults to the creation time when not supplied.
	OccurredAt time.Time `json:"occurredAt" db:"occurred_at"`

	// Status is one of IncidentPending, IncidentInReview or IncidentResolved.
	Status string `json:"status" db:"status"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ValidIncidentStatus reports whether status is a known incident status.
func ValidIncidentStatus(status string) bool {
	switch status {
	case IncidentPending, IncidentInReview, IncidentResolved:
		return true
	}
	return false
}
