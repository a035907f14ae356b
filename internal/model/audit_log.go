package model

import "time"

// AuditAction enumerates the state transitions recorded in the `logs`
// table.  BLOCKED covers the moderation path that marks a code
// NON_USABLE.
type AuditAction string

const (
	ActionReserved AuditAction = "RESERVED"
	ActionReleased AuditAction = "RELEASED"
	ActionAdded    AuditAction = "ADDED"
	ActionDeleted  AuditAction = "DELETED"
	ActionBlocked  AuditAction = "BLOCKED"
)

// AuditLogEntry mirrors the `logs` table.  Rows are append-only: the
// core never updates or deletes them.  Actor names, emails and region
// labels are denormalized at write time so reports survive user
// deletion.
type AuditLogEntry struct {
	ID           uint64      `json:"id"`
	Code         string      `json:"code"`
	UserID       *uint64     `json:"user_id,omitempty"`
	UserName     string      `json:"user_name"`
	ContactEmail string      `json:"contact_email"`
	TesterName   *string     `json:"tester_name,omitempty"`
	Action       AuditAction `json:"action"`
	RegionName   *string     `json:"region_name,omitempty"`
	CountryName  *string     `json:"country_name,omitempty"`
	Note         *string     `json:"note,omitempty"`
	LoggedAt     time.Time   `json:"logged_at"`
}
