package model

import "time"

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "Scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "Confirmed"
	AppointmentStatusCompleted AppointmentStatus = "Completed"
	AppointmentStatusCancelled AppointmentStatus = "Cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "No-Show"
)

// Appointment is one bookable slot: an exact (doctor, date, time) triple.
// Date is an ISO date and Time an HH:MM wall-clock value; slot equality is
// exact value match, not interval overlap. The status field is a free tag,
// not a guarded state machine.
type Appointment struct {
	ID        int64             `db:"id" json:"id"`
	DoctorID  int64             `db:"doctor_id" json:"doctor_id"`
	PatientID int64             `db:"patient_id" json:"patient_id"`
	Date      string            `db:"appointment_date" json:"appointment_date"`
	Time      string            `db:"appointment_time" json:"appointment_time"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Notes     *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

type CreateAppointmentRequest struct {
	DoctorID  int64             `json:"doctor_id" binding:"required"`
	PatientID int64             `json:"patient_id" binding:"required"`
	Date      string            `json:"appointment_date" binding:"required,datetime=2006-01-02"`
	Time      string            `json:"appointment_time" binding:"required,datetime=15:04"`
	Status    AppointmentStatus `json:"status" binding:"required,oneof=Scheduled Confirmed Completed Cancelled No-Show"`
	Notes     *string           `json:"notes"`
}

type UpdateAppointmentRequest struct {
	Date   *string            `json:"appointment_date" binding:"omitempty,datetime=2006-01-02"`
	Time   *string            `json:"appointment_time" binding:"omitempty,datetime=15:04"`
	Status *AppointmentStatus `json:"status" binding:"omitempty,oneof=Scheduled Confirmed Completed Cancelled No-Show"`
	Notes  *string            `json:"notes"`
}
