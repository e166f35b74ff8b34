package audit

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
)

// Recorder appends immutable patient audit records. Appends run inside the
// caller's transaction; a failed append is logged and counted but never
// propagated, so an audit problem cannot block a clinical data change.
type Recorder struct {
	repo     repository.AuditRepository
	logger   zerolog.Logger
	failures prometheus.Counter
}

func NewRecorder(repo repository.AuditRepository, logger zerolog.Logger, failures prometheus.Counter) *Recorder {
	return &Recorder{
		repo:     repo,
		logger:   logger.With().Str("component", "audit").Logger(),
		failures: failures,
	}
}

// Record appends one audit row for a patient mutation. oldValues and
// newValues are full attribute snapshots, not diffs; either may be nil.
func (r *Recorder) Record(ctx context.Context, tx *sqlx.Tx, action model.AuditAction, patientID int64, actor model.Actor, oldValues, newValues *model.Patient) {
	entry := &model.PatientAudit{
		UserID:    actor.UserID,
		PatientID: patientID,
		Action:    action,
	}
	if actor.SourceIP != "" {
		ip := actor.SourceIP
		entry.IPAddress = &ip
	}

	var err error
	if oldValues != nil {
		if entry.OldValues, err = json.Marshal(oldValues); err != nil {
			r.fail(action, patientID, err)
			return
		}
	}
	if newValues != nil {
		if entry.NewValues, err = json.Marshal(newValues); err != nil {
			r.fail(action, patientID, err)
			return
		}
	}

	if err := r.repo.CreateTx(ctx, tx, entry); err != nil {
		r.fail(action, patientID, err)
	}
}

func (r *Recorder) fail(action model.AuditAction, patientID int64, err error) {
	r.failures.Inc()
	r.logger.Error().
		Err(err).
		Str("action", string(action)).
		Int64("patient_id", patientID).
		Msg("audit append failed")
}

// ListForPatient returns the audit trail for one patient, newest first.
func (r *Recorder) ListForPatient(ctx context.Context, patientID int64, page model.Pagination) ([]*model.PatientAudit, int, error) {
	return r.repo.ListByPatient(ctx, patientID, page.Limit(), page.Offset())
}

// ListForExternalID returns the trail keyed by the public patient id. The id
// is resolved through the snapshots, so the trail of a deleted patient
// stays readable.
func (r *Recorder) ListForExternalID(ctx context.Context, externalID string, page model.Pagination) ([]*model.PatientAudit, int, error) {
	return r.repo.ListByExternalID(ctx, externalID, page.Limit(), page.Offset())
}
