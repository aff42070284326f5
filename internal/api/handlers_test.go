package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carebridge/clinic-sync/internal/lock"
	"github.com/carebridge/clinic-sync/internal/remote"
	"github.com/carebridge/clinic-sync/internal/schedule"
	"github.com/carebridge/clinic-sync/internal/storage"
)

// stubRemote answers like the clinic service without a network. Book assigns
// a fresh id; FetchDay fails with a transport error so handlers exercise the
// cache fallback path.
type stubRemote struct {
	offline bool
}

func (s *stubRemote) FetchDay(ctx context.Context, day time.Time, clinic, location string) ([]schedule.Appointment, error) {
	if s.offline {
		return nil, &remote.TransportError{Cause: context.DeadlineExceeded}
	}
	return nil, nil
}

func (s *stubRemote) Book(ctx context.Context, appt schedule.Appointment) (schedule.Appointment, error) {
	if s.offline {
		return schedule.Appointment{}, &remote.TransportError{Cause: context.DeadlineExceeded}
	}
	appt.ID = uuid.New()
	return appt, nil
}

func (s *stubRemote) Reschedule(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) error {
	if s.offline {
		return &remote.TransportError{Cause: context.DeadlineExceeded}
	}
	return nil
}

func (s *stubRemote) Cancel(ctx context.Context, id uuid.UUID) error {
	if s.offline {
		return &remote.TransportError{Cause: context.DeadlineExceeded}
	}
	return nil
}

func newTestRouter(t *testing.T, rem *stubRemote) (http.Handler, *storage.Store) {
	t.Helper()

	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := schedule.NewService(store, rem, lock.NewKeyedMutex(), zap.NewNop())
	return NewRouter(RouterConfig{
		Schedule: svc,
		Vitals:   store,
		Health:   store,
		Log:      zap.NewNop(),
		Env:      "test",
		Version:  "test",
	}), store
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func bookRequest(start, end time.Time) BookAppointmentRequest {
	return BookAppointmentRequest{
		PatientID:   uuid.New().String(),
		PatientName: "Ada Lovelace",
		Clinic:      "ClinicA",
		Location:    "Room1",
		StartTime:   start.Format(time.RFC3339Nano),
		EndTime:     end.Format(time.RFC3339Nano),
	}
}

func TestBookEndpointCreatesAppointment(t *testing.T) {
	router, _ := newTestRouter(t, &stubRemote{})

	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	rec := doJSON(t, router, http.MethodPost, "/appointments", bookRequest(start, start.Add(30*time.Minute)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.Equal(t, "BOOKED", resp.Status)
}

func TestBookEndpointConflictIs409(t *testing.T) {
	router, _ := newTestRouter(t, &stubRemote{})

	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	first := doJSON(t, router, http.MethodPost, "/appointments", bookRequest(start, start.Add(30*time.Minute)))
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := doJSON(t, router, http.MethodPost, "/appointments", bookRequest(start.Add(15*time.Minute), start.Add(45*time.Minute)))
	require.Equal(t, http.StatusConflict, second.Code, second.Body.String())

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &errResp))
	assert.Equal(t, "appointment_conflict", errResp.Error)
}

func TestBookEndpointOfflineIs503(t *testing.T) {
	router, _ := newTestRouter(t, &stubRemote{offline: true})

	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	rec := doJSON(t, router, http.MethodPost, "/appointments", bookRequest(start, start.Add(30*time.Minute)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "remote_unavailable", errResp.Error)
}

func TestListDayFallsBackToCacheWhenOffline(t *testing.T) {
	router, store := newTestRouter(t, &stubRemote{offline: true})

	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	cached, err := schedule.NewAppointment(uuid.New(), "Grace Hopper", "ClinicA", "Room1", start, start.Add(30*time.Minute), "")
	require.NoError(t, err)
	cached.ID = uuid.New()
	require.NoError(t, store.UpsertAppointment(context.Background(), cached))

	rec := doJSON(t, router, http.MethodGet, "/appointments?date=2026-03-09", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp []AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, cached.ID, resp[0].ID)
}

func TestListDayRejectsBadDate(t *testing.T) {
	router, _ := newTestRouter(t, &stubRemote{})

	rec := doJSON(t, router, http.MethodGet, "/appointments?date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelUnknownAppointmentIs404(t *testing.T) {
	router, _ := newTestRouter(t, &stubRemote{})

	rec := doJSON(t, router, http.MethodPost, "/appointments/"+uuid.NewString()+"/cancel", nil)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "appointment_not_found", errResp.Error)
}

func TestRecordAndListVitals(t *testing.T) {
	router, _ := newTestRouter(t, &stubRemote{})

	patientID := uuid.New()
	rec := doJSON(t, router, http.MethodPost, "/vitals", RecordVitalRequest{
		PatientID:         patientID.String(),
		RecordedAt:        "2026-03-09T10:00:00Z",
		HeartRateBPM:      72,
		BodyTemperatureC:  36.6,
		BloodGlucoseMmolL: 5.2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created VitalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.False(t, created.Synced)

	list := doJSON(t, router, http.MethodGet, "/patients/"+patientID.String()+"/vitals", nil)
	require.Equal(t, http.StatusOK, list.Code, list.Body.String())

	var readings []VitalResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &readings))
	require.Len(t, readings, 1)
	assert.Equal(t, created.ID, readings[0].ID)
}

func TestRecordVitalRejectsImplausibleValues(t *testing.T) {
	router, _ := newTestRouter(t, &stubRemote{})

	rec := doJSON(t, router, http.MethodPost, "/vitals", RecordVitalRequest{
		PatientID:        uuid.NewString(),
		HeartRateBPM:     7000,
		BodyTemperatureC: 36.6,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, &stubRemote{})

	live := doJSON(t, router, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, live.Code)

	ready := doJSON(t, router, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, ready.Code)
}
