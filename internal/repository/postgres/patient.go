package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, patient_id, first_name, last_name, date_of_birth, gender,
			phone_number, email, address, emergency_contact_name,
			emergency_contact_phone, insurance_details, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt

	_, err := tx.ExecContext(ctx, query,
		patient.ID,
		patient.PatientID,
		patient.FirstName,
		patient.LastName,
		patient.DateOfBirth,
		patient.Gender,
		patient.PhoneNumber,
		patient.Email,
		patient.Address,
		patient.EmergencyContactName,
		patient.EmergencyContactPhone,
		patient.InsuranceDetails,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "patients_phone_number_key") {
			return apperrors.Conflict("phone number already in use")
		}
		if isUniqueViolation(err, "patients_email_key") {
			return apperrors.Conflict("email already in use")
		}
		if isUniqueViolation(err, "") {
			return apperrors.Conflict("patient already exists")
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE id = $1`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("patient")
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByExternalID(ctx context.Context, externalID string) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE patient_id = $1`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("patient")
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

// UpdateTx persists all mutable columns. patient_id is deliberately absent:
// the external identifier is immutable after creation.
func (r *patientRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET first_name = $1, last_name = $2, date_of_birth = $3, gender = $4,
			phone_number = $5, email = $6, address = $7,
			emergency_contact_name = $8, emergency_contact_phone = $9,
			insurance_details = $10, updated_at = $11
		WHERE id = $12
	`
	patient.UpdatedAt = time.Now()

	result, err := tx.ExecContext(ctx, query,
		patient.FirstName,
		patient.LastName,
		patient.DateOfBirth,
		patient.Gender,
		patient.PhoneNumber,
		patient.Email,
		patient.Address,
		patient.EmergencyContactName,
		patient.EmergencyContactPhone,
		patient.InsuranceDetails,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "patients_phone_number_key") {
			return apperrors.Conflict("phone number already in use")
		}
		if isUniqueViolation(err, "patients_email_key") {
			return apperrors.Conflict("email already in use")
		}
		return fmt.Errorf("failed to update patient: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("patient")
	}
	return nil
}

func (r *patientRepository) List(ctx context.Context, search string, limit, offset int) ([]*model.Patient, int, error) {
	where := ""
	var args []interface{}

	if search != "" {
		where = ` WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR phone_number ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM patients`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT * FROM patients%s ORDER BY id LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}
