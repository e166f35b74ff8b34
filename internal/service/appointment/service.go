package appointment

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

// Service orchestrates the appointment lifecycle: booking against the
// availability check, reschedules, status changes and cancellation.
type Service interface {
	Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, id int64) (*model.Appointment, error)
	Update(ctx context.Context, id int64, req *model.UpdateAppointmentRequest) (*model.Appointment, error)
	Cancel(ctx context.Context, id int64) error
	List(ctx context.Context, page model.Pagination) ([]*model.Appointment, int, error)
	ListForPatient(ctx context.Context, patientID int64, page model.Pagination) ([]*model.Appointment, int, error)
	ListForDoctor(ctx context.Context, doctorID int64, page model.Pagination) ([]*model.Appointment, int, error)
}

type service struct {
	repo      repository.AppointmentRepository
	doctors   repository.DoctorRepository
	patients  repository.PatientRepository
	conflicts prometheus.Counter
}

func NewService(
	repo repository.AppointmentRepository,
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	conflicts prometheus.Counter,
) Service {
	return &service{
		repo:      repo,
		doctors:   doctors,
		patients:  patients,
		conflicts: conflicts,
	}
}

func (s *service) Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	exists, err := s.doctors.Exists(ctx, req.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to check doctor: %w", err)
	}
	if !exists {
		return nil, apperrors.NotFound("doctor")
	}

	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}

	available, err := s.repo.IsAvailable(ctx, req.DoctorID, req.Date, req.Time, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if !available {
		s.conflicts.Inc()
		return nil, apperrors.Conflict("Doctor not available at this time")
	}

	appointment := &model.Appointment{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Date:      req.Date,
		Time:      req.Time,
		Status:    req.Status,
		Notes:     req.Notes,
	}

	// The repository maps a unique violation on the slot index to the same
	// conflict error, closing the check-then-insert race.
	if err := s.repo.Create(ctx, appointment); err != nil {
		if apperrors.IsConflict(err) {
			s.conflicts.Inc()
		}
		return nil, err
	}
	return appointment, nil
}

func (s *service) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a partial reschedule or status change. The slot is
// re-validated whenever the date or the time changes, using the stored value
// for whichever half was not supplied, with the appointment itself excluded.
func (s *service) Update(ctx context.Context, id int64, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	newDate := appointment.Date
	if req.Date != nil {
		newDate = *req.Date
	}
	newTime := appointment.Time
	if req.Time != nil {
		newTime = *req.Time
	}

	if newDate != appointment.Date || newTime != appointment.Time {
		available, err := s.repo.IsAvailable(ctx, appointment.DoctorID, newDate, newTime, &id)
		if err != nil {
			return nil, fmt.Errorf("failed to check availability: %w", err)
		}
		if !available {
			s.conflicts.Inc()
			return nil, apperrors.Conflict("Doctor not available at this time")
		}
	}

	appointment.Date = newDate
	appointment.Time = newTime
	if req.Status != nil {
		appointment.Status = *req.Status
	}
	if req.Notes != nil {
		appointment.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, appointment); err != nil {
		if apperrors.IsConflict(err) {
			s.conflicts.Inc()
		}
		return nil, err
	}
	return appointment, nil
}

// Cancel permanently removes the appointment, freeing the slot. This is a
// hard delete, distinct from setting status to Cancelled.
func (s *service) Cancel(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *service) List(ctx context.Context, page model.Pagination) ([]*model.Appointment, int, error) {
	return s.repo.List(ctx, page.Limit(), page.Offset())
}

func (s *service) ListForPatient(ctx context.Context, patientID int64, page model.Pagination) ([]*model.Appointment, int, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, page.Limit(), page.Offset())
}

func (s *service) ListForDoctor(ctx context.Context, doctorID int64, page model.Pagination) ([]*model.Appointment, int, error) {
	exists, err := s.doctors.Exists(ctx, doctorID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to check doctor: %w", err)
	}
	if !exists {
		return nil, 0, apperrors.NotFound("doctor")
	}
	return s.repo.ListByDoctor(ctx, doctorID, page.Limit(), page.Offset())
}
