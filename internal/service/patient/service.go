package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/internal/service/audit"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/security"
)

const tempPasswordLength = 10

// Service orchestrates the patient lifecycle. Every mutation appends an
// audit record in the same transaction and keeps the linked user account
// in step with the patient's name and email.
type Service interface {
	Create(ctx context.Context, req *model.CreatePatientRequest, actor model.Actor) (*model.Patient, error)
	Get(ctx context.Context, externalID string) (*model.Patient, error)
	Update(ctx context.Context, externalID string, req *model.UpdatePatientRequest, actor model.Actor) (*model.Patient, error)
	Delete(ctx context.Context, externalID string, actor model.Actor) error
	List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
	ListAudits(ctx context.Context, externalID string, page model.Pagination) ([]*model.PatientAudit, int, error)
}

type service struct {
	repo    repository.PatientRepository
	users   repository.UserRepository
	outbox  repository.OutboxRepository
	auditor *audit.Recorder
	hasher  security.PasswordHasher
	logger  zerolog.Logger
}

func NewService(
	repo repository.PatientRepository,
	users repository.UserRepository,
	outbox repository.OutboxRepository,
	auditor *audit.Recorder,
	hasher security.PasswordHasher,
	logger zerolog.Logger,
) Service {
	return &service{
		repo:    repo,
		users:   users,
		outbox:  outbox,
		auditor: auditor,
		hasher:  hasher,
		logger:  logger.With().Str("component", "patient").Logger(),
	}
}

// Create provisions the linked user account and the patient row in one
// transaction, appends the created audit record, and queues a password
// reset email when an address was given.
func (s *service) Create(ctx context.Context, req *model.CreatePatientRequest, actor model.Actor) (*model.Patient, error) {
	tempPassword, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate temporary password: %w", err)
	}
	passwordHash, err := s.hasher.Hash(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash temporary password: %w", err)
	}

	user := &model.User{
		Name:         req.FirstName + " " + req.LastName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         model.RolePatient,
	}

	patient := &model.Patient{
		PatientID:             uuid.NewString(),
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		DateOfBirth:           req.DateOfBirth,
		Gender:                req.Gender,
		PhoneNumber:           req.PhoneNumber,
		Email:                 req.Email,
		Address:               req.Address,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		InsuranceDetails:      req.InsuranceDetails,
	}

	err = s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.users.CreateTx(ctx, tx, user); err != nil {
			return err
		}
		patient.ID = user.ID
		if err := s.repo.CreateTx(ctx, tx, patient); err != nil {
			return err
		}
		s.auditor.Record(ctx, tx, model.AuditActionCreated, patient.ID, actor, nil, patient)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		s.queuePasswordReset(ctx, user)
	}
	return patient, nil
}

func (s *service) Get(ctx context.Context, externalID string) (*model.Patient, error) {
	return s.repo.GetByExternalID(ctx, externalID)
}

// Update applies a partial-field merge. Name and email changes propagate to
// the linked account: the account name is always recomputed from the
// effective first and last name.
func (s *service) Update(ctx context.Context, externalID string, req *model.UpdatePatientRequest, actor model.Actor) (*model.Patient, error) {
	patient, err := s.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	before := *patient

	applyPatientUpdate(patient, req)

	syncAccount := req.FirstName != nil || req.LastName != nil || req.Email != nil

	err = s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if syncAccount {
			user, err := s.users.Get(ctx, patient.ID)
			if err != nil {
				return err
			}
			user.Name = strings.TrimSpace(patient.FirstName + " " + patient.LastName)
			if req.Email != nil {
				user.Email = req.Email
			}
			if err := s.users.UpdateTx(ctx, tx, user); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateTx(ctx, tx, patient); err != nil {
			return err
		}
		s.auditor.Record(ctx, tx, model.AuditActionUpdated, patient.ID, actor, &before, patient)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return patient, nil
}

// Delete removes the linked account, which cascades to the patient row.
// The audit trail is preserved: the deleted record is appended first and
// audit rows carry no FK to the patients table.
func (s *service) Delete(ctx context.Context, externalID string, actor model.Actor) error {
	patient, err := s.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return err
	}

	return s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		s.auditor.Record(ctx, tx, model.AuditActionDeleted, patient.ID, actor, patient, nil)
		return s.users.DeleteTx(ctx, tx, patient.ID)
	})
}

func (s *service) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	if filters == nil {
		filters = &model.PatientFilters{}
	}
	return s.repo.List(ctx, filters.Search, filters.Limit(), filters.Offset())
}

// ListAudits returns the trail for a patient, including one that has been
// deleted: the public id is then resolved through the audit snapshots.
func (s *service) ListAudits(ctx context.Context, externalID string, page model.Pagination) ([]*model.PatientAudit, int, error) {
	patient, err := s.repo.GetByExternalID(ctx, externalID)
	if err == nil {
		return s.auditor.ListForPatient(ctx, patient.ID, page)
	}
	if !apperrors.IsNotFound(err) {
		return nil, 0, err
	}

	audits, total, listErr := s.auditor.ListForExternalID(ctx, externalID, page)
	if listErr != nil {
		return nil, 0, listErr
	}
	if total == 0 {
		return nil, 0, err
	}
	return audits, total, nil
}

// queuePasswordReset writes a PASSWORD_RESET outbox event after the create
// transaction commits. Best effort: a failure is logged, never surfaced.
func (s *service) queuePasswordReset(ctx context.Context, user *model.User) {
	payload, err := json.Marshal(model.PasswordResetPayload{
		UserID: user.ID,
		Email:  *user.Email,
		Name:   user.Name,
		Token:  uuid.NewString(),
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to marshal password reset event")
		return
	}
	event := &model.OutboxEvent{
		EventType: model.EventTypePasswordReset,
		Payload:   payload,
	}
	if err := s.outbox.Create(ctx, event); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to queue password reset event")
	}
}

func applyPatientUpdate(patient *model.Patient, req *model.UpdatePatientRequest) {
	if req.FirstName != nil {
		patient.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		patient.LastName = *req.LastName
	}
	if req.DateOfBirth != nil {
		patient.DateOfBirth = *req.DateOfBirth
	}
	if req.Gender != nil {
		patient.Gender = *req.Gender
	}
	if req.PhoneNumber != nil {
		patient.PhoneNumber = *req.PhoneNumber
	}
	if req.Email != nil {
		patient.Email = req.Email
	}
	if req.Address != nil {
		patient.Address = req.Address
	}
	if req.EmergencyContactName != nil {
		patient.EmergencyContactName = req.EmergencyContactName
	}
	if req.EmergencyContactPhone != nil {
		patient.EmergencyContactPhone = req.EmergencyContactPhone
	}
	if req.InsuranceDetails != nil {
		patient.InsuranceDetails = req.InsuranceDetails
	}
}
