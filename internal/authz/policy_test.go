package authz

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/clinicore/clinic-api/internal/model"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

type stubPatients struct {
	byExternal map[string]*model.Patient
}

func (s *stubPatients) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error { return fn(nil) }
func (s *stubPatients) CreateTx(_ context.Context, _ *sqlx.Tx, _ *model.Patient) error {
	return nil
}
func (s *stubPatients) Get(_ context.Context, id int64) (*model.Patient, error) {
	return &model.Patient{ID: id}, nil
}
func (s *stubPatients) GetByExternalID(_ context.Context, externalID string) (*model.Patient, error) {
	p, ok := s.byExternal[externalID]
	if !ok {
		return nil, apperrors.NotFound("patient")
	}
	return p, nil
}
func (s *stubPatients) UpdateTx(_ context.Context, _ *sqlx.Tx, _ *model.Patient) error { return nil }
func (s *stubPatients) List(_ context.Context, _ string, _, _ int) ([]*model.Patient, int, error) {
	return nil, 0, nil
}

type stubDoctors struct {
	// links maps doctorID to the patients they have appointments with.
	links map[int64]map[int64]bool
}

func (s *stubDoctors) Get(_ context.Context, id int64) (*model.Doctor, error) {
	return &model.Doctor{ID: id}, nil
}
func (s *stubDoctors) Exists(_ context.Context, id int64) (bool, error) { return true, nil }
func (s *stubDoctors) HasPatient(_ context.Context, doctorID, patientID int64) (bool, error) {
	return s.links[doctorID][patientID], nil
}

type stubAppointments struct {
	byID map[int64]*model.Appointment
}

func (s *stubAppointments) Create(_ context.Context, _ *model.Appointment) error { return nil }
func (s *stubAppointments) Get(_ context.Context, id int64) (*model.Appointment, error) {
	a, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NotFound("appointment")
	}
	return a, nil
}
func (s *stubAppointments) Update(_ context.Context, _ *model.Appointment) error { return nil }
func (s *stubAppointments) Delete(_ context.Context, _ int64) error              { return nil }
func (s *stubAppointments) List(_ context.Context, _, _ int) ([]*model.Appointment, int, error) {
	return nil, 0, nil
}
func (s *stubAppointments) ListByPatient(_ context.Context, _ int64, _, _ int) ([]*model.Appointment, int, error) {
	return nil, 0, nil
}
func (s *stubAppointments) ListByDoctor(_ context.Context, _ int64, _, _ int) ([]*model.Appointment, int, error) {
	return nil, 0, nil
}
func (s *stubAppointments) IsAvailable(_ context.Context, _ int64, _, _ string, _ *int64) (bool, error) {
	return true, nil
}

func newTestAuthorizer() *Authorizer {
	return NewAuthorizer(
		&stubPatients{byExternal: map[string]*model.Patient{
			"ext-5": {ID: 5, PatientID: "ext-5"},
		}},
		&stubDoctors{links: map[int64]map[int64]bool{
			7: {5: true},
		}},
		&stubAppointments{byID: map[int64]*model.Appointment{
			100: {ID: 100, DoctorID: 7, PatientID: 5},
		}},
	)
}

func actorFor(id int64, role model.Role) model.Actor {
	return model.Actor{UserID: &id, Role: role}
}

func TestAuthorize(t *testing.T) {
	az := newTestAuthorizer()
	ctx := context.Background()
	id5 := int64(5)
	id7 := int64(7)
	id8 := int64(8)
	id100 := int64(100)

	tests := []struct {
		name    string
		actor   model.Actor
		op      Operation
		target  Target
		allowed bool
	}{
		{"admin lists appointments", actorFor(1, model.RoleAdmin), OpAppointmentList, Target{}, true},
		{"crm agent creates appointments", actorFor(2, model.RoleCRMAgent), OpAppointmentCreate, Target{}, true},
		{"doctor cannot list all appointments", actorFor(7, model.RoleDoctor), OpAppointmentList, Target{}, false},
		{"patient cannot create appointments", actorFor(5, model.RolePatient), OpAppointmentCreate, Target{}, false},
		{"lab manager has no appointment access", actorFor(3, model.RoleLabManager), OpAppointmentList, Target{}, false},

		{"patient reads own appointments", actorFor(5, model.RolePatient), OpAppointmentListPatient, Target{PatientID: &id5}, true},
		{"patient cannot read another patient's appointments", actorFor(6, model.RolePatient), OpAppointmentListPatient, Target{PatientID: &id5}, false},
		{"treating doctor reads patient appointments", actorFor(7, model.RoleDoctor), OpAppointmentListPatient, Target{PatientID: &id5}, true},
		{"unrelated doctor cannot read patient appointments", actorFor(8, model.RoleDoctor), OpAppointmentListPatient, Target{PatientID: &id5}, false},

		{"doctor reads own schedule", actorFor(7, model.RoleDoctor), OpAppointmentListDoctor, Target{DoctorID: &id7}, true},
		{"doctor cannot read another doctor's schedule", actorFor(7, model.RoleDoctor), OpAppointmentListDoctor, Target{DoctorID: &id8}, false},

		{"owning doctor updates the appointment", actorFor(7, model.RoleDoctor), OpAppointmentUpdate, Target{AppointmentID: &id100}, true},
		{"other doctor cannot update the appointment", actorFor(8, model.RoleDoctor), OpAppointmentUpdate, Target{AppointmentID: &id100}, false},
		{"owning doctor cannot cancel", actorFor(7, model.RoleDoctor), OpAppointmentCancel, Target{AppointmentID: &id100}, false},
		{"admin cancels", actorFor(1, model.RoleAdmin), OpAppointmentCancel, Target{AppointmentID: &id100}, true},

		{"admin lists patients", actorFor(1, model.RoleAdmin), OpPatientList, Target{}, true},
		{"doctor cannot list patients", actorFor(7, model.RoleDoctor), OpPatientList, Target{}, false},
		{"any doctor reads a patient record", actorFor(8, model.RoleDoctor), OpPatientGet, Target{PatientExternalID: "ext-5"}, true},
		{"patient reads own record", actorFor(5, model.RolePatient), OpPatientGet, Target{PatientExternalID: "ext-5"}, true},
		{"patient cannot read another record", actorFor(6, model.RolePatient), OpPatientGet, Target{PatientExternalID: "ext-5"}, false},

		{"crm agent updates patients", actorFor(2, model.RoleCRMAgent), OpPatientUpdate, Target{PatientExternalID: "ext-5"}, true},
		{"crm agent cannot delete patients", actorFor(2, model.RoleCRMAgent), OpPatientDelete, Target{PatientExternalID: "ext-5"}, false},
		{"admin deletes patients", actorFor(1, model.RoleAdmin), OpPatientDelete, Target{PatientExternalID: "ext-5"}, true},
		{"only admin reads audits", actorFor(2, model.RoleCRMAgent), OpPatientAudits, Target{PatientExternalID: "ext-5"}, false},
		{"admin reads audits", actorFor(1, model.RoleAdmin), OpPatientAudits, Target{PatientExternalID: "ext-5"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := az.Authorize(ctx, tt.actor, tt.op, tt.target)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsForbidden(err))
			}
		})
	}
}

func TestAuthorizeUnknownOperation(t *testing.T) {
	az := newTestAuthorizer()
	err := az.Authorize(context.Background(), actorFor(1, model.RoleAdmin), Operation("nope"), Target{})
	assert.True(t, apperrors.IsForbidden(err))
}

func TestAuthorizeAnonymousActor(t *testing.T) {
	az := newTestAuthorizer()
	id := int64(5)
	err := az.Authorize(context.Background(), model.Actor{}, OpAppointmentListPatient, Target{PatientID: &id})
	assert.True(t, apperrors.IsForbidden(err))
}

func TestDoctorPatientLinkCachesPositives(t *testing.T) {
	doctors := &stubDoctors{links: map[int64]map[int64]bool{7: {5: true}}}
	az := NewAuthorizer(
		&stubPatients{byExternal: map[string]*model.Patient{}},
		doctors,
		&stubAppointments{byID: map[int64]*model.Appointment{}},
	)
	id5 := int64(5)

	err := az.Authorize(context.Background(), actorFor(7, model.RoleDoctor), OpAppointmentListPatient, Target{PatientID: &id5})
	assert.NoError(t, err)

	// Dropping the link no longer matters within the cache window.
	doctors.links = map[int64]map[int64]bool{}
	err = az.Authorize(context.Background(), actorFor(7, model.RoleDoctor), OpAppointmentListPatient, Target{PatientID: &id5})
	assert.NoError(t, err)
}
