package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

// CreateTx appends an audit row inside the caller's transaction, guarded by
// a savepoint: if the insert fails, the transaction is rolled back to the
// savepoint so the primary mutation can still commit.
func (r *auditRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, audit *model.PatientAudit) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT patient_audit"); err != nil {
		return fmt.Errorf("failed to set audit savepoint: %w", err)
	}

	query := `
		INSERT INTO patient_audits (
			user_id, patient_id, action, old_values, new_values, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	audit.CreatedAt = time.Now()

	err := tx.QueryRowContext(ctx, query,
		audit.UserID,
		audit.PatientID,
		audit.Action,
		audit.OldValues,
		audit.NewValues,
		audit.IPAddress,
		audit.CreatedAt,
	).Scan(&audit.ID)
	if err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT patient_audit"); rbErr != nil {
			return fmt.Errorf("failed to roll back audit savepoint: %v (insert error: %w)", rbErr, err)
		}
		return fmt.Errorf("failed to create patient audit: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT patient_audit"); err != nil {
		return fmt.Errorf("failed to release audit savepoint: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*model.PatientAudit, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM patient_audits WHERE patient_id = $1`, patientID); err != nil {
		return nil, 0, fmt.Errorf("failed to count patient audits: %w", err)
	}

	query := `
		SELECT * FROM patient_audits
		WHERE patient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	audits := []*model.PatientAudit{}
	if err := r.db.SelectContext(ctx, &audits, query, patientID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list patient audits: %w", err)
	}
	return audits, total, nil
}

// ListByExternalID resolves the trail through the public patient id carried
// in the snapshots, so it keeps working after the patient row is deleted.
func (r *auditRepository) ListByExternalID(ctx context.Context, externalID string, limit, offset int) ([]*model.PatientAudit, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM patient_audits
		WHERE COALESCE(new_values->>'patient_id', old_values->>'patient_id') = $1
	`, externalID); err != nil {
		return nil, 0, fmt.Errorf("failed to count patient audits: %w", err)
	}

	query := `
		SELECT * FROM patient_audits
		WHERE COALESCE(new_values->>'patient_id', old_values->>'patient_id') = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	audits := []*model.PatientAudit{}
	if err := r.db.SelectContext(ctx, &audits, query, externalID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list patient audits: %w", err)
	}
	return audits, total, nil
}

// DeleteBefore purges audit rows older than the cutoff. Only the retention
// worker calls this; the API never deletes audit rows.
func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM patient_audits WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge patient audits: %w", err)
	}
	return result.RowsAffected()
}
