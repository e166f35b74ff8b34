package appointment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-api/internal/model"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

type stubService struct {
	items  map[int64]*model.Appointment
	nextID int64
}

func newStubService() *stubService {
	return &stubService{items: make(map[int64]*model.Appointment), nextID: 1}
}

func (s *stubService) Create(_ context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	for _, a := range s.items {
		if a.DoctorID == req.DoctorID && a.Date == req.Date && a.Time == req.Time {
			return nil, apperrors.Conflict("Doctor not available at this time")
		}
	}
	a := &model.Appointment{
		ID:        s.nextID,
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Date:      req.Date,
		Time:      req.Time,
		Status:    req.Status,
	}
	s.nextID++
	s.items[a.ID] = a
	return a, nil
}

func (s *stubService) Get(_ context.Context, id int64) (*model.Appointment, error) {
	a, ok := s.items[id]
	if !ok {
		return nil, apperrors.NotFound("appointment")
	}
	return a, nil
}

func (s *stubService) Update(_ context.Context, id int64, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	a, ok := s.items[id]
	if !ok {
		return nil, apperrors.NotFound("appointment")
	}
	if req.Status != nil {
		a.Status = *req.Status
	}
	return a, nil
}

func (s *stubService) Cancel(_ context.Context, id int64) error {
	if _, ok := s.items[id]; !ok {
		return apperrors.NotFound("appointment")
	}
	delete(s.items, id)
	return nil
}

func (s *stubService) List(_ context.Context, _ model.Pagination) ([]*model.Appointment, int, error) {
	out := make([]*model.Appointment, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (s *stubService) ListForPatient(_ context.Context, patientID int64, _ model.Pagination) ([]*model.Appointment, int, error) {
	return []*model.Appointment{}, 0, nil
}

func (s *stubService) ListForDoctor(_ context.Context, doctorID int64, _ model.Pagination) ([]*model.Appointment, int, error) {
	return []*model.Appointment{}, 0, nil
}

func setupRouter(svc *stubService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc)
	r := gin.New()
	r.POST("/appointments", h.Create)
	r.GET("/appointments", h.List)
	r.PATCH("/appointments/:id", h.Update)
	r.DELETE("/appointments/:id", h.Cancel)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const validAppointmentJSON = `{
	"doctor_id": 1,
	"patient_id": 10,
	"appointment_date": "2026-09-01",
	"appointment_time": "10:00",
	"status": "Scheduled"
}`

func TestCreateAppointmentEndpoint(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		r := setupRouter(newStubService())

		w := doJSON(r, http.MethodPost, "/appointments", validAppointmentJSON)
		require.Equal(t, http.StatusCreated, w.Code)

		var got model.Appointment
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "2026-09-01", got.Date)
	})

	t.Run("slot conflict", func(t *testing.T) {
		r := setupRouter(newStubService())

		w := doJSON(r, http.MethodPost, "/appointments", validAppointmentJSON)
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(r, http.MethodPost, "/appointments", validAppointmentJSON)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Doctor not available at this time", body["error"])
	})

	t.Run("bad time format", func(t *testing.T) {
		r := setupRouter(newStubService())

		payload := strings.Replace(validAppointmentJSON, "10:00", "10am", 1)
		w := doJSON(r, http.MethodPost, "/appointments", payload)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("bad status value", func(t *testing.T) {
		r := setupRouter(newStubService())

		payload := strings.Replace(validAppointmentJSON, "Scheduled", "Pending", 1)
		w := doJSON(r, http.MethodPost, "/appointments", payload)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestUpdateAppointmentEndpoint(t *testing.T) {
	r := setupRouter(newStubService())
	doJSON(r, http.MethodPost, "/appointments", validAppointmentJSON)

	t.Run("status change", func(t *testing.T) {
		w := doJSON(r, http.MethodPatch, "/appointments/1", `{"status": "Confirmed"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var got model.Appointment
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, model.AppointmentStatusConfirmed, got.Status)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		w := doJSON(r, http.MethodPatch, "/appointments/abc", `{"status": "Confirmed"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := doJSON(r, http.MethodPatch, "/appointments/999", `{"status": "Confirmed"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCancelAppointmentEndpoint(t *testing.T) {
	r := setupRouter(newStubService())
	doJSON(r, http.MethodPost, "/appointments", validAppointmentJSON)

	w := doJSON(r, http.MethodDelete, "/appointments/1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodDelete, "/appointments/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
