package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

// Operation names one access-controlled API operation.
type Operation string

const (
	OpAppointmentList        Operation = "appointments:list"
	OpAppointmentCreate      Operation = "appointments:create"
	OpAppointmentListPatient Operation = "appointments:list_for_patient"
	OpAppointmentListDoctor  Operation = "appointments:list_for_doctor"
	OpAppointmentUpdate      Operation = "appointments:update"
	OpAppointmentCancel      Operation = "appointments:cancel"
	OpPatientList            Operation = "patients:list"
	OpPatientCreate          Operation = "patients:create"
	OpPatientGet             Operation = "patients:get"
	OpPatientUpdate          Operation = "patients:update"
	OpPatientDelete          Operation = "patients:delete"
	OpPatientAudits          Operation = "patients:audits"
)

// Relationship is a condition between the actor and the targeted entity
// that can grant access beyond the actor's role.
type Relationship int

const (
	// RelSelfPatient: the actor is the targeted patient.
	RelSelfPatient Relationship = iota + 1
	// RelSelfDoctor: the actor is the targeted doctor.
	RelSelfDoctor
	// RelDoctorOfPatient: the actor is a doctor with at least one
	// appointment linking them to the targeted patient.
	RelDoctorOfPatient
	// RelOwningDoctor: the actor is the doctor on the targeted appointment.
	RelOwningDoctor
)

// Target identifies the entity an operation acts on. Exactly the fields
// the route can name are set; the rest stay zero.
type Target struct {
	PatientID         *int64
	PatientExternalID string
	DoctorID          *int64
	AppointmentID     *int64
}

type rule struct {
	roles         map[model.Role]bool
	relationships []Relationship
}

func roles(rs ...model.Role) map[model.Role]bool {
	m := make(map[model.Role]bool, len(rs))
	for _, r := range rs {
		m[r] = true
	}
	return m
}

// policy is the single declarative access table: operation -> allowed
// roles plus relationship grants, consulted once before the core operation
// runs.
var policy = map[Operation]rule{
	OpAppointmentList:   {roles: roles(model.RoleAdmin, model.RoleCRMAgent)},
	OpAppointmentCreate: {roles: roles(model.RoleAdmin, model.RoleCRMAgent)},
	OpAppointmentListPatient: {
		roles:         roles(model.RoleAdmin, model.RoleCRMAgent),
		relationships: []Relationship{RelSelfPatient, RelDoctorOfPatient},
	},
	OpAppointmentListDoctor: {
		roles:         roles(model.RoleAdmin, model.RoleCRMAgent),
		relationships: []Relationship{RelSelfDoctor},
	},
	OpAppointmentUpdate: {
		roles:         roles(model.RoleAdmin, model.RoleCRMAgent),
		relationships: []Relationship{RelOwningDoctor},
	},
	OpAppointmentCancel: {roles: roles(model.RoleAdmin, model.RoleCRMAgent)},
	OpPatientList:       {roles: roles(model.RoleAdmin, model.RoleCRMAgent)},
	OpPatientCreate:     {roles: roles(model.RoleAdmin, model.RoleCRMAgent)},
	OpPatientGet: {
		roles:         roles(model.RoleAdmin, model.RoleCRMAgent, model.RoleDoctor),
		relationships: []Relationship{RelSelfPatient},
	},
	OpPatientUpdate: {roles: roles(model.RoleAdmin, model.RoleCRMAgent)},
	OpPatientDelete: {roles: roles(model.RoleAdmin)},
	OpPatientAudits: {roles: roles(model.RoleAdmin)},
}

// Authorizer evaluates the policy table. Relationship lookups hit the
// repositories; doctor-patient links are cached briefly since they only
// grow monotonically while an appointment exists.
type Authorizer struct {
	patients     repository.PatientRepository
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	relCache     *cache.Cache
}

func NewAuthorizer(
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	appointments repository.AppointmentRepository,
) *Authorizer {
	return &Authorizer{
		patients:     patients,
		doctors:      doctors,
		appointments: appointments,
		relCache:     cache.New(time.Minute, 5*time.Minute),
	}
}

// Authorize returns nil when the actor may perform op on target, a
// Forbidden error otherwise.
func (a *Authorizer) Authorize(ctx context.Context, actor model.Actor, op Operation, target Target) error {
	r, ok := policy[op]
	if !ok {
		return apperrors.Forbidden()
	}

	if r.roles[actor.Role] {
		return nil
	}

	if actor.UserID != nil {
		for _, rel := range r.relationships {
			granted, err := a.holds(ctx, rel, *actor.UserID, actor.Role, target)
			if err != nil {
				return err
			}
			if granted {
				return nil
			}
		}
	}

	return apperrors.Forbidden()
}

func (a *Authorizer) holds(ctx context.Context, rel Relationship, userID int64, role model.Role, target Target) (bool, error) {
	switch rel {
	case RelSelfPatient:
		if role != model.RolePatient {
			return false, nil
		}
		patientID, err := a.resolvePatientID(ctx, target)
		if err != nil || patientID == 0 {
			return false, err
		}
		return patientID == userID, nil

	case RelSelfDoctor:
		return role == model.RoleDoctor && target.DoctorID != nil && *target.DoctorID == userID, nil

	case RelDoctorOfPatient:
		if role != model.RoleDoctor {
			return false, nil
		}
		patientID, err := a.resolvePatientID(ctx, target)
		if err != nil || patientID == 0 {
			return false, err
		}
		return a.doctorHasPatient(ctx, userID, patientID)

	case RelOwningDoctor:
		if role != model.RoleDoctor || target.AppointmentID == nil {
			return false, nil
		}
		appointment, err := a.appointments.Get(ctx, *target.AppointmentID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		return appointment.DoctorID == userID, nil
	}
	return false, nil
}

func (a *Authorizer) resolvePatientID(ctx context.Context, target Target) (int64, error) {
	if target.PatientID != nil {
		return *target.PatientID, nil
	}
	if target.PatientExternalID == "" {
		return 0, nil
	}
	patient, err := a.patients.GetByExternalID(ctx, target.PatientExternalID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return patient.ID, nil
}

func (a *Authorizer) doctorHasPatient(ctx context.Context, doctorID, patientID int64) (bool, error) {
	key := fmt.Sprintf("doc:%d:pat:%d", doctorID, patientID)
	if v, ok := a.relCache.Get(key); ok {
		return v.(bool), nil
	}
	linked, err := a.doctors.HasPatient(ctx, doctorID, patientID)
	if err != nil {
		return false, err
	}
	// Only positive results are cached: a fresh booking must grant access
	// immediately.
	if linked {
		a.relCache.SetDefault(key, true)
	}
	return linked, nil
}
