package model

import "time"

// Doctor shares its numeric key with the linked user account. A doctor is
// related to a patient whenever at least one appointment links them.
type Doctor struct {
	ID             int64     `db:"id" json:"id"`
	Specialization string    `db:"specialization" json:"specialization"`
	Phone          string    `db:"phone" json:"phone"`
	Email          string    `db:"email" json:"email"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
