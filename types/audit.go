package types

import "time"

// Audit actions.
const (
	ActionCreation = "Creation"
	ActionEdit     = "Edit"
	ActionDeletion = "Deletion"
)

// Tracked resource types.
const (
	ResourceUser     = "User"
	ResourceIncident = "Incident"
)

// AuditRecord is an immutable entry in the audit log describing one
// mutating action.
type AuditRecord struct {
	ID string `json:"id" db:"id"`

	// ResourceID references the affected entity. The entity may no longer exist.
	ResourceID string `json:"resourceId" db:"resource_id"`

	ResourceType string `json:"resourceType" db:"resource_type"`
	Action       string `json:"action" db:"action"`
	Description  string `json:"description" db:"description"`

	// Actor is the acting user's display name at the time of the action.
	Actor string `json:"actor" db:"actor"`

	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// AuditFilter narrows an audit log listing. Empty fields match everything.
type AuditFilter struct {
	ResourceID   string
	ResourceType string
}
