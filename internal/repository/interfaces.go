package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/clinic-api/internal/model"
)

// All repository interfaces in one file. The Tx-suffixed methods run inside
// a caller-owned transaction; TxRunner opens one.
type (
	TxRunner interface {
		WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
	}

	UserRepository interface {
		CreateTx(ctx context.Context, tx *sqlx.Tx, user *model.User) error
		Get(ctx context.Context, id int64) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		UpdateTx(ctx context.Context, tx *sqlx.Tx, user *model.User) error
		DeleteTx(ctx context.Context, tx *sqlx.Tx, id int64) error
	}

	PatientRepository interface {
		TxRunner
		CreateTx(ctx context.Context, tx *sqlx.Tx, patient *model.Patient) error
		Get(ctx context.Context, id int64) (*model.Patient, error)
		GetByExternalID(ctx context.Context, externalID string) (*model.Patient, error)
		UpdateTx(ctx context.Context, tx *sqlx.Tx, patient *model.Patient) error
		List(ctx context.Context, search string, limit, offset int) ([]*model.Patient, int, error)
	}

	DoctorRepository interface {
		Get(ctx context.Context, id int64) (*model.Doctor, error)
		Exists(ctx context.Context, id int64) (bool, error)
		HasPatient(ctx context.Context, doctorID, patientID int64) (bool, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id int64) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context, limit, offset int) ([]*model.Appointment, int, error)
		ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*model.Appointment, int, error)
		ListByDoctor(ctx context.Context, doctorID int64, limit, offset int) ([]*model.Appointment, int, error)
		IsAvailable(ctx context.Context, doctorID int64, date, timeOfDay string, excludeID *int64) (bool, error)
	}

	AuditRepository interface {
		CreateTx(ctx context.Context, tx *sqlx.Tx, audit *model.PatientAudit) error
		ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*model.PatientAudit, int, error)
		ListByExternalID(ctx context.Context, externalID string, limit, offset int) ([]*model.PatientAudit, int, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetDue(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkForRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	}
)
