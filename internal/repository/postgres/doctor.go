package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

func (r *doctorRepository) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	query := `SELECT * FROM doctors WHERE id = $1`
	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("doctor")
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("failed to check doctor existence: %w", err)
	}
	return exists, nil
}

// HasPatient reports whether any appointment links the doctor to the
// patient. This is the doctor-of-patient relationship used by the access
// policy.
func (r *doctorRepository) HasPatient(ctx context.Context, doctorID, patientID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND patient_id = $2
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, doctorID, patientID); err != nil {
		return false, fmt.Errorf("failed to check doctor-patient link: %w", err)
	}
	return exists, nil
}
