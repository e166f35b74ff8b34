package appointment

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-api/internal/model"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

type fakeAppointmentRepo struct {
	items  map[int64]*model.Appointment
	nextID int64

	// lieAvailable makes IsAvailable report a free slot even when it is
	// taken, so the unique-constraint backstop path can be exercised.
	lieAvailable bool
	availErr     error
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{items: make(map[int64]*model.Appointment), nextID: 1}
}

func (r *fakeAppointmentRepo) slotTaken(doctorID int64, date, timeOfDay string, excludeID *int64) bool {
	for _, a := range r.items {
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.DoctorID == doctorID && a.Date == date && a.Time == timeOfDay {
			return true
		}
	}
	return false
}

func (r *fakeAppointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	if r.slotTaken(a.DoctorID, a.Date, a.Time, nil) {
		return apperrors.Conflict("Doctor not available at this time")
	}
	a.ID = r.nextID
	r.nextID++
	copied := *a
	r.items[a.ID] = &copied
	return nil
}

func (r *fakeAppointmentRepo) Get(_ context.Context, id int64) (*model.Appointment, error) {
	a, ok := r.items[id]
	if !ok {
		return nil, apperrors.NotFound("appointment")
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAppointmentRepo) Update(_ context.Context, a *model.Appointment) error {
	if _, ok := r.items[a.ID]; !ok {
		return apperrors.NotFound("appointment")
	}
	if r.slotTaken(a.DoctorID, a.Date, a.Time, &a.ID) {
		return apperrors.Conflict("Doctor not available at this time")
	}
	copied := *a
	r.items[a.ID] = &copied
	return nil
}

func (r *fakeAppointmentRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.items[id]; !ok {
		return apperrors.NotFound("appointment")
	}
	delete(r.items, id)
	return nil
}

func (r *fakeAppointmentRepo) List(_ context.Context, limit, offset int) ([]*model.Appointment, int, error) {
	out := make([]*model.Appointment, 0, len(r.items))
	for _, a := range r.items {
		copied := *a
		out = append(out, &copied)
	}
	return out, len(r.items), nil
}

func (r *fakeAppointmentRepo) ListByPatient(_ context.Context, patientID int64, limit, offset int) ([]*model.Appointment, int, error) {
	var out []*model.Appointment
	for _, a := range r.items {
		if a.PatientID == patientID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, len(out), nil
}

func (r *fakeAppointmentRepo) ListByDoctor(_ context.Context, doctorID int64, limit, offset int) ([]*model.Appointment, int, error) {
	var out []*model.Appointment
	for _, a := range r.items {
		if a.DoctorID == doctorID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, len(out), nil
}

func (r *fakeAppointmentRepo) IsAvailable(_ context.Context, doctorID int64, date, timeOfDay string, excludeID *int64) (bool, error) {
	if r.availErr != nil {
		return false, r.availErr
	}
	if r.lieAvailable {
		return true, nil
	}
	return !r.slotTaken(doctorID, date, timeOfDay, excludeID), nil
}

type fakeDoctorRepo struct {
	ids map[int64]bool
}

func (r *fakeDoctorRepo) Get(_ context.Context, id int64) (*model.Doctor, error) {
	if !r.ids[id] {
		return nil, apperrors.NotFound("doctor")
	}
	return &model.Doctor{ID: id}, nil
}

func (r *fakeDoctorRepo) Exists(_ context.Context, id int64) (bool, error) {
	return r.ids[id], nil
}

func (r *fakeDoctorRepo) HasPatient(_ context.Context, doctorID, patientID int64) (bool, error) {
	return false, nil
}

type fakePatientLookup struct {
	ids map[int64]bool
}

func (r *fakePatientLookup) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

func (r *fakePatientLookup) CreateTx(_ context.Context, _ *sqlx.Tx, _ *model.Patient) error {
	return nil
}

func (r *fakePatientLookup) Get(_ context.Context, id int64) (*model.Patient, error) {
	if !r.ids[id] {
		return nil, apperrors.NotFound("patient")
	}
	return &model.Patient{ID: id}, nil
}

func (r *fakePatientLookup) GetByExternalID(_ context.Context, _ string) (*model.Patient, error) {
	return nil, apperrors.NotFound("patient")
}

func (r *fakePatientLookup) UpdateTx(_ context.Context, _ *sqlx.Tx, _ *model.Patient) error {
	return nil
}

func (r *fakePatientLookup) List(_ context.Context, _ string, _, _ int) ([]*model.Patient, int, error) {
	return nil, 0, nil
}

func testCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: "test_booking_conflicts_total"})
}

func newTestService(repo *fakeAppointmentRepo) Service {
	return NewService(
		repo,
		&fakeDoctorRepo{ids: map[int64]bool{1: true}},
		&fakePatientLookup{ids: map[int64]bool{10: true}},
		testCounter(),
	)
}

func validCreateRequest() *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		DoctorID:  1,
		PatientID: 10,
		Date:      "2026-09-01",
		Time:      "10:00",
		Status:    model.AppointmentStatusScheduled,
	}
}

func TestCreate(t *testing.T) {
	t.Run("books a free slot", func(t *testing.T) {
		svc := newTestService(newFakeAppointmentRepo())

		created, err := svc.Create(context.Background(), validCreateRequest())
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, "2026-09-01", created.Date)
		assert.Equal(t, "10:00", created.Time)
	})

	t.Run("rejects a taken slot", func(t *testing.T) {
		svc := newTestService(newFakeAppointmentRepo())

		_, err := svc.Create(context.Background(), validCreateRequest())
		require.NoError(t, err)

		req := validCreateRequest()
		req.Status = model.AppointmentStatusConfirmed
		_, err = svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
		assert.EqualError(t, err, "Doctor not available at this time")
	})

	t.Run("constraint backstop catches a race the advisory check missed", func(t *testing.T) {
		repo := newFakeAppointmentRepo()
		svc := newTestService(repo)

		_, err := svc.Create(context.Background(), validCreateRequest())
		require.NoError(t, err)

		repo.lieAvailable = true
		_, err = svc.Create(context.Background(), validCreateRequest())
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("same time on another date is free", func(t *testing.T) {
		svc := newTestService(newFakeAppointmentRepo())

		_, err := svc.Create(context.Background(), validCreateRequest())
		require.NoError(t, err)

		req := validCreateRequest()
		req.Date = "2026-09-02"
		_, err = svc.Create(context.Background(), req)
		assert.NoError(t, err)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		svc := newTestService(newFakeAppointmentRepo())

		req := validCreateRequest()
		req.DoctorID = 99
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("unknown patient", func(t *testing.T) {
		svc := newTestService(newFakeAppointmentRepo())

		req := validCreateRequest()
		req.PatientID = 99
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestUpdate(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	setup := func(t *testing.T) (Service, *model.Appointment) {
		svc := newTestService(newFakeAppointmentRepo())
		created, err := svc.Create(context.Background(), validCreateRequest())
		require.NoError(t, err)
		return svc, created
	}

	t.Run("reschedule to a free slot", func(t *testing.T) {
		svc, created := setup(t)

		updated, err := svc.Update(context.Background(), created.ID, &model.UpdateAppointmentRequest{
			Date: strPtr("2026-09-03"),
			Time: strPtr("11:30"),
		})
		require.NoError(t, err)
		assert.Equal(t, "2026-09-03", updated.Date)
		assert.Equal(t, "11:30", updated.Time)
	})

	t.Run("time-only change is checked against the stored date", func(t *testing.T) {
		svc, created := setup(t)

		// A second appointment occupies 14:00 on the same date.
		req := validCreateRequest()
		req.Time = "14:00"
		_, err := svc.Create(context.Background(), req)
		require.NoError(t, err)

		_, err = svc.Update(context.Background(), created.ID, &model.UpdateAppointmentRequest{
			Time: strPtr("14:00"),
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("keeping the own slot is not a conflict", func(t *testing.T) {
		svc, created := setup(t)

		status := model.AppointmentStatusConfirmed
		updated, err := svc.Update(context.Background(), created.ID, &model.UpdateAppointmentRequest{
			Date:   strPtr(created.Date),
			Time:   strPtr(created.Time),
			Status: &status,
		})
		require.NoError(t, err)
		assert.Equal(t, model.AppointmentStatusConfirmed, updated.Status)
	})

	t.Run("status change skips the availability check", func(t *testing.T) {
		repo := newFakeAppointmentRepo()
		svc := newTestService(repo)
		created, err := svc.Create(context.Background(), validCreateRequest())
		require.NoError(t, err)

		// Any availability lookup would now fail; a pure status change
		// must not perform one.
		repo.availErr = assert.AnError
		status := model.AppointmentStatusNoShow
		updated, err := svc.Update(context.Background(), created.ID, &model.UpdateAppointmentRequest{
			Status: &status,
		})
		require.NoError(t, err)
		assert.Equal(t, model.AppointmentStatusNoShow, updated.Status)
		assert.Equal(t, created.Date, updated.Date)
	})

	t.Run("reschedule frees the old slot", func(t *testing.T) {
		svc, created := setup(t)

		_, err := svc.Update(context.Background(), created.ID, &model.UpdateAppointmentRequest{
			Time: strPtr("16:00"),
		})
		require.NoError(t, err)

		// The original 10:00 slot is bookable again.
		_, err = svc.Create(context.Background(), validCreateRequest())
		assert.NoError(t, err)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		svc, _ := setup(t)

		_, err := svc.Update(context.Background(), 999, &model.UpdateAppointmentRequest{})
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestCancel(t *testing.T) {
	t.Run("frees the slot for rebooking", func(t *testing.T) {
		svc, created := func() (Service, *model.Appointment) {
			s := newTestService(newFakeAppointmentRepo())
			a, err := s.Create(context.Background(), validCreateRequest())
			require.NoError(t, err)
			return s, a
		}()

		require.NoError(t, svc.Cancel(context.Background(), created.ID))

		_, err := svc.Create(context.Background(), validCreateRequest())
		assert.NoError(t, err)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		svc := newTestService(newFakeAppointmentRepo())

		err := svc.Cancel(context.Background(), 42)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestLists(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo())
	_, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	t.Run("list for existing patient", func(t *testing.T) {
		items, total, err := svc.ListForPatient(context.Background(), 10, model.Pagination{Page: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, items, 1)
	})

	t.Run("list for unknown patient", func(t *testing.T) {
		_, _, err := svc.ListForPatient(context.Background(), 99, model.Pagination{Page: 1})
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("list for unknown doctor", func(t *testing.T) {
		_, _, err := svc.ListForDoctor(context.Background(), 99, model.Pagination{Page: 1})
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("list all", func(t *testing.T) {
		items, total, err := svc.List(context.Background(), model.Pagination{Page: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, items, 1)
	})
}
