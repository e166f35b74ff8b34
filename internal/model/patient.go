package model

import "time"

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Patient shares its numeric key with the linked user account. PatientID
// is the opaque external identifier used in every public reference; it is
// generated once at creation and never changes.
type Patient struct {
	ID                    int64     `db:"id" json:"id"`
	PatientID             string    `db:"patient_id" json:"patient_id"`
	FirstName             string    `db:"first_name" json:"first_name"`
	LastName              string    `db:"last_name" json:"last_name"`
	DateOfBirth           string    `db:"date_of_birth" json:"date_of_birth"`
	Gender                Gender    `db:"gender" json:"gender"`
	PhoneNumber           string    `db:"phone_number" json:"phone_number"`
	Email                 *string   `db:"email" json:"email,omitempty"`
	Address               *string   `db:"address" json:"address,omitempty"`
	EmergencyContactName  *string   `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string   `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	InsuranceDetails      JSONMap   `db:"insurance_details" json:"insurance_details,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

type CreatePatientRequest struct {
	FirstName             string  `json:"first_name" binding:"required"`
	LastName              string  `json:"last_name" binding:"required"`
	DateOfBirth           string  `json:"date_of_birth" binding:"required,datetime=2006-01-02"`
	Gender                Gender  `json:"gender" binding:"required,oneof=Male Female Other"`
	PhoneNumber           string  `json:"phone_number" binding:"required"`
	Email                 *string `json:"email" binding:"omitempty,email"`
	Address               *string `json:"address"`
	EmergencyContactName  *string `json:"emergency_contact_name"`
	EmergencyContactPhone *string `json:"emergency_contact_phone"`
	InsuranceDetails      JSONMap `json:"insurance_details"`
}

type UpdatePatientRequest struct {
	FirstName             *string `json:"first_name"`
	LastName              *string `json:"last_name"`
	DateOfBirth           *string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Gender                *Gender `json:"gender" binding:"omitempty,oneof=Male Female Other"`
	PhoneNumber           *string `json:"phone_number"`
	Email                 *string `json:"email" binding:"omitempty,email"`
	Address               *string `json:"address"`
	EmergencyContactName  *string `json:"emergency_contact_name"`
	EmergencyContactPhone *string `json:"emergency_contact_phone"`
	InsuranceDetails      JSONMap `json:"insurance_details"`
}

type PatientFilters struct {
	Search string `form:"search"`
	Pagination
}
