package model

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditActionCreated AuditAction = "created"
	AuditActionUpdated AuditAction = "updated"
	AuditActionDeleted AuditAction = "deleted"
)

// PatientAudit is one append-only record of a patient mutation. Rows are
// never updated or deleted by the application; PatientID is kept as a plain
// historical reference so the trail survives patient deletion.
type PatientAudit struct {
	ID        int64           `db:"id" json:"id"`
	UserID    *int64          `db:"user_id" json:"user_id,omitempty"`
	PatientID int64           `db:"patient_id" json:"patient_id"`
	Action    AuditAction     `db:"action" json:"action"`
	OldValues json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress *string         `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
