package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carebridge/clinic-sync/internal/schedule"
	"github.com/carebridge/clinic-sync/internal/vitals"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func makeAppointment(t *testing.T, clinic, location string, start, end time.Time, status schedule.Status) schedule.Appointment {
	t.Helper()

	a, err := schedule.NewAppointment(uuid.New(), "Grace Hopper", clinic, location, start, end, "follow-up")
	require.NoError(t, err)
	a.ID = uuid.New()
	a.Status = status
	return a
}

func day(h, m int) time.Time {
	return time.Date(2026, 3, 9, h, m, 0, 0, time.UTC)
}

func TestUpsertAndGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := makeAppointment(t, "ClinicA", "Room1", day(9, 0), day(9, 30), schedule.StatusBooked)
	require.NoError(t, store.UpsertAppointment(ctx, want))

	got, err := store.GetAppointmentByID(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.PatientID, got.PatientID)
	assert.Equal(t, want.PatientName, got.PatientName)
	assert.True(t, got.Start.Equal(want.Start), "start %v != %v", got.Start, want.Start)
	assert.True(t, got.End.Equal(want.End), "end %v != %v", got.End, want.End)
	assert.Equal(t, schedule.StatusBooked, got.Status)
	assert.Equal(t, want.Notes, got.Notes)
}

func TestGetAppointmentByIDNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetAppointmentByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestUpsertRejectsNilID(t *testing.T) {
	store := openTestStore(t)

	a := makeAppointment(t, "ClinicA", "Room1", day(9, 0), day(9, 30), schedule.StatusBooked)
	a.ID = uuid.Nil
	assert.Error(t, store.UpsertAppointment(context.Background(), a))
}

func TestAppointmentsForDayOrderingAndFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	late := makeAppointment(t, "ClinicA", "Room1", day(15, 0), day(15, 30), schedule.StatusBooked)
	early := makeAppointment(t, "ClinicA", "Room1", day(8, 0), day(8, 30), schedule.StatusBooked)
	otherRoom := makeAppointment(t, "ClinicA", "Room2", day(10, 0), day(10, 30), schedule.StatusBooked)
	otherDay := makeAppointment(t, "ClinicA", "Room1", day(9, 0).AddDate(0, 0, 1), day(9, 30).AddDate(0, 0, 1), schedule.StatusBooked)
	for _, a := range []schedule.Appointment{late, early, otherRoom, otherDay} {
		require.NoError(t, store.UpsertAppointment(ctx, a))
	}

	got, err := store.AppointmentsForDay(ctx, day(0, 0), "", "")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, early.ID, got[0].ID, "results must be ordered by start time")
	assert.Equal(t, otherRoom.ID, got[1].ID)
	assert.Equal(t, late.ID, got[2].ID)

	room1, err := store.AppointmentsForDay(ctx, day(0, 0), "ClinicA", "Room1")
	require.NoError(t, err)
	require.Len(t, room1, 2)
	for _, a := range room1 {
		assert.Equal(t, "Room1", a.Location)
	}
}

func TestBookedAppointmentsExcludesCancelled(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	booked := makeAppointment(t, "ClinicA", "Room1", day(9, 0), day(9, 30), schedule.StatusBooked)
	cancelled := makeAppointment(t, "ClinicA", "Room1", day(10, 0), day(10, 30), schedule.StatusCancelled)
	require.NoError(t, store.UpsertAppointment(ctx, booked))
	require.NoError(t, store.UpsertAppointment(ctx, cancelled))

	got, err := store.BookedAppointments(ctx, "ClinicA", "Room1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, booked.ID, got[0].ID)
}

func TestReplaceDaySwapsOnlyMatchingRecords(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stale := makeAppointment(t, "ClinicA", "Room1", day(9, 0), day(9, 30), schedule.StatusBooked)
	otherDay := makeAppointment(t, "ClinicA", "Room1", day(9, 0).AddDate(0, 0, 1), day(9, 30).AddDate(0, 0, 1), schedule.StatusBooked)
	require.NoError(t, store.UpsertAppointment(ctx, stale))
	require.NoError(t, store.UpsertAppointment(ctx, otherDay))

	fresh := makeAppointment(t, "ClinicA", "Room1", day(11, 0), day(11, 30), schedule.StatusBooked)
	require.NoError(t, store.ReplaceDay(ctx, day(0, 0), "ClinicA", "Room1", []schedule.Appointment{fresh}))

	got, err := store.AppointmentsForDay(ctx, day(0, 0), "ClinicA", "Room1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fresh.ID, got[0].ID, "stale record should be gone")

	// A replace scoped to one day must not touch neighbouring days.
	_, err = store.GetAppointmentByID(ctx, otherDay.ID)
	assert.NoError(t, err)
}

func TestUpdateAppointmentTime(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := makeAppointment(t, "ClinicA", "Room1", day(9, 0), day(9, 30), schedule.StatusBooked)
	require.NoError(t, store.UpsertAppointment(ctx, a))

	require.NoError(t, store.UpdateAppointmentTime(ctx, a.ID, day(13, 0), day(13, 45)))

	got, err := store.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(day(13, 0)))
	assert.True(t, got.End.Equal(day(13, 45)))

	assert.ErrorIs(t, store.UpdateAppointmentTime(ctx, uuid.New(), day(9, 0), day(9, 30)), schedule.ErrNotFound)
}

func TestUpdateAppointmentStatusIsCompareAndSet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := makeAppointment(t, "ClinicA", "Room1", day(9, 0), day(9, 30), schedule.StatusBooked)
	require.NoError(t, store.UpsertAppointment(ctx, a))

	require.NoError(t, store.UpdateAppointmentStatus(ctx, a.ID, schedule.StatusBooked, schedule.StatusCancelled))

	got, err := store.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusCancelled, got.Status)

	// Second transition from BOOKED no longer matches.
	assert.ErrorIs(t,
		store.UpdateAppointmentStatus(ctx, a.ID, schedule.StatusBooked, schedule.StatusCancelled),
		schedule.ErrNotFound)
}

func makeReading(t *testing.T, patientID uuid.UUID, recordedAt time.Time) vitals.Reading {
	t.Helper()

	r, err := vitals.NewReading(patientID, recordedAt, 68, 36.8, 4.9)
	require.NoError(t, err)
	return r
}

func TestReadingsUnsyncedLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	patient := uuid.New()
	first := makeReading(t, patient, day(10, 0))
	second := makeReading(t, patient, day(10, 5))
	require.NoError(t, store.InsertReading(ctx, first))
	require.NoError(t, store.InsertReading(ctx, second))

	unsynced, err := store.UnsyncedReadings(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 2)
	assert.Equal(t, first.ID, unsynced[0].ID, "oldest reading first")

	require.NoError(t, store.MarkReadingsSynced(ctx, []uuid.UUID{first.ID}))

	unsynced, err = store.UnsyncedReadings(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, second.ID, unsynced[0].ID)

	require.NoError(t, store.MarkReadingsSynced(ctx, []uuid.UUID{second.ID}))

	unsynced, err = store.UnsyncedReadings(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
}

func TestMarkReadingsSyncedEmptyBatch(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.MarkReadingsSynced(context.Background(), nil))
}

func TestReadingsForPatientPagination(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	patient := uuid.New()
	other := uuid.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.InsertReading(ctx, makeReading(t, patient, day(10, i))))
	}
	require.NoError(t, store.InsertReading(ctx, makeReading(t, other, day(11, 0))))

	page, err := store.ReadingsForPatient(ctx, patient, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].RecordedAt.After(page[1].RecordedAt), "newest first")
	assert.True(t, page[0].RecordedAt.Equal(day(10, 4)))

	next, err := store.ReadingsForPatient(ctx, patient, 2, 2)
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.True(t, next[0].RecordedAt.Equal(day(10, 2)))

	all, err := store.ReadingsForPatient(ctx, patient, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
