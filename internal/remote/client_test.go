package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/clinic-sync/internal/schedule"
	"github.com/carebridge/clinic-sync/internal/vitals"
)

func testAppointment(t *testing.T) schedule.Appointment {
	t.Helper()

	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	appt, err := schedule.NewAppointment(uuid.New(), "Ada Lovelace", "ClinicA", "Room1", start, start.Add(30*time.Minute), "")
	require.NoError(t, err)
	return appt
}

func TestBookSendsBearerTokenAndDecodesServerRecord(t *testing.T) {
	serverID := uuid.New()
	var gotAuth, gotPath, gotMethod string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method

		var dto AppointmentDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&dto))
		dto.ID = serverID.String()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode(dto))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("secret-token"))
	booked, err := client.Book(context.Background(), testAppointment(t))
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/appointments", gotPath)
	assert.Equal(t, serverID, booked.ID)
	assert.Equal(t, schedule.StatusBooked, booked.Status)
}

func TestFetchDayQueryParameters(t *testing.T) {
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"date":     r.URL.Query().Get("date"),
			"clinic":   r.URL.Query().Get("clinic"),
			"location": r.URL.Query().Get("location"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("t"))
	day := time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)
	appts, err := client.FetchDay(context.Background(), day, "ClinicA", "Room1")
	require.NoError(t, err)

	assert.Empty(t, appts)
	assert.Equal(t, "2026-03-09", gotQuery["date"])
	assert.Equal(t, "ClinicA", gotQuery["clinic"])
	assert.Equal(t, "Room1", gotQuery["location"])
}

func TestNon2xxBecomesApplicationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"appointment_conflict","details":"slot already booked"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("t"))
	_, err := client.Book(context.Background(), testAppointment(t))

	var appErr *ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "appointment_conflict", appErr.Code)
	assert.Equal(t, "slot already booked", appErr.Message)
	assert.False(t, appErr.Retryable())
}

func TestNon2xxWithUnparseableBodyStillDecided(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream blew up"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("t"))
	err := client.Cancel(context.Background(), uuid.New())

	var appErr *ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, "upstream blew up", appErr.Message)
}

func TestConnectionFailureBecomesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := NewClient(srv.URL, StaticTokenSource("t"))
	_, err := client.FetchDay(context.Background(), time.Now(), "", "")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, transportErr.Retryable())
}

func TestEmptyTokenAbortsBeforeAnyRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource(""))
	err := client.Cancel(context.Background(), uuid.New())

	require.Error(t, err)
	var transportErr *TransportError
	assert.False(t, errors.As(err, &transportErr), "credential failure is not a transport outcome")
	assert.False(t, called, "no request may leave the device without a credential")
}

func TestUploadReadingsPostsBulkPayload(t *testing.T) {
	var gotPath string
	var gotDTOs []ReadingDTO

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotDTOs))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accepted":2}`))
	}))
	defer srv.Close()

	recordedAt := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	first, err := vitals.NewReading(uuid.New(), recordedAt, 72, 36.6, 5.1)
	require.NoError(t, err)
	second, err := vitals.NewReading(uuid.New(), recordedAt.Add(time.Minute), 75, 36.7, 5.3)
	require.NoError(t, err)

	client := NewClient(srv.URL, StaticTokenSource("t"))
	require.NoError(t, client.UploadReadings(context.Background(), []vitals.Reading{first, second}))

	assert.Equal(t, "/vitals/bulk", gotPath)
	require.Len(t, gotDTOs, 2)
	assert.Equal(t, first.ID.String(), gotDTOs[0].ID)
	assert.Equal(t, second.ID.String(), gotDTOs[1].ID)
}

func TestMalformedSuccessBodyBecomesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"truncated":`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("t"))
	_, err := client.Book(context.Background(), testAppointment(t))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}
