package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

// errSlotTaken is the conflict surfaced when a (doctor, date, time) slot is
// already booked, whether caught by the advisory pre-check or by the unique
// constraint on insert.
var errSlotTaken = apperrors.Conflict("Doctor not available at this time")

const slotUniqueConstraint = "appointments_doctor_slot_key"

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			doctor_id, patient_id, appointment_date, appointment_time,
			status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	err := r.db.QueryRowContext(ctx, query,
		appointment.DoctorID,
		appointment.PatientID,
		appointment.Date,
		appointment.Time,
		appointment.Status,
		appointment.Notes,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	).Scan(&appointment.ID)
	if err != nil {
		// Two concurrent creates can both pass the advisory pre-check;
		// the unique index is the authority.
		if isUniqueViolation(err, slotUniqueConstraint) || isUniqueViolation(err, "") {
			return errSlotTaken
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `SELECT * FROM appointments WHERE id = $1`
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("appointment")
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET appointment_date = $1, appointment_time = $2, status = $3,
			notes = $4, updated_at = $5
		WHERE id = $6
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.Date,
		appointment.Time,
		appointment.Status,
		appointment.Notes,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		if isUniqueViolation(err, slotUniqueConstraint) || isUniqueViolation(err, "") {
			return errSlotTaken
		}
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment")
	}
	return nil
}

// Delete removes the row outright: cancellation is a hard delete, which
// frees the slot for rebooking.
func (r *appointmentRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM appointments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment")
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, limit, offset int) ([]*model.Appointment, int, error) {
	return r.list(ctx, "", nil, limit, offset)
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*model.Appointment, int, error) {
	return r.list(ctx, "patient_id", &patientID, limit, offset)
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID int64, limit, offset int) ([]*model.Appointment, int, error) {
	return r.list(ctx, "doctor_id", &doctorID, limit, offset)
}

func (r *appointmentRepository) list(ctx context.Context, column string, value *int64, limit, offset int) ([]*model.Appointment, int, error) {
	where := ""
	var args []interface{}
	if column != "" {
		where = fmt.Sprintf(" WHERE %s = $1", column)
		args = append(args, *value)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM appointments`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT * FROM appointments%s ORDER BY id LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, total, nil
}

// IsAvailable reports whether the exact (doctor, date, time) slot is free.
// Advisory only: the caller must still treat a unique violation on write as
// the same conflict.
func (r *appointmentRepository) IsAvailable(ctx context.Context, doctorID int64, date, timeOfDay string, excludeID *int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			AND appointment_date = $2
			AND appointment_time = $3
	`
	args := []interface{}{doctorID, date, timeOfDay}

	if excludeID != nil {
		query += " AND id != $4"
		args = append(args, *excludeID)
	}
	query += ")"

	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, args...); err != nil {
		return false, fmt.Errorf("failed to check availability: %w", err)
	}
	return !taken, nil
}
