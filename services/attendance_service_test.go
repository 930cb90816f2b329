package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"event-hub/internal/status"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestClassifyJoinRejection_AlreadyAttending(t *testing.T) {
	err := classifyJoinRejection([]string{"u1", "u2"}, 5, "u1")

	assert.ErrorIs(t, err, status.ErrAlreadyAttending)
}

func TestClassifyJoinRejection_Full(t *testing.T) {
	err := classifyJoinRejection([]string{"u1", "u2"}, 2, "u3")

	assert.ErrorIs(t, err, status.ErrEventFull)
}

func TestClassifyJoinRejection_DuplicateWinsOverCapacity(t *testing.T) {
	// a user already on a full event reads as a duplicate, not as capacity
	err := classifyJoinRejection([]string{"u1", "u2"}, 2, "u2")

	assert.ErrorIs(t, err, status.ErrAlreadyAttending)
}

func TestClassifyJoinRejection_LostRace(t *testing.T) {
	err := classifyJoinRejection([]string{"u1"}, 5, "u2")

	assert.ErrorIs(t, err, status.ErrJoinInProgress)
}

// Walks the capacity example: event with capacity 2 and creator A. B joins,
// then C is rejected for capacity and a second B attempt reads as a
// duplicate.
func TestJoinRejectionSequence(t *testing.T) {
	capacity := 2
	attendees := []string{"A"}

	// B joins successfully; the conditional update would match, so no
	// rejection is classified
	attendees = append(attendees, "B")

	err := classifyJoinRejection(attendees, capacity, "C")
	assert.ErrorIs(t, err, status.ErrEventFull)

	err = classifyJoinRejection(attendees, capacity, "B")
	assert.ErrorIs(t, err, status.ErrAlreadyAttending)
}

func newEventsDB(t *testing.T) *dbx.DB {
	t.Helper()

	db, err := dbx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// every connection of a :memory: DSN opens its own database
	db.DB().SetMaxOpenConns(1)

	_, err = db.NewQuery(`
		CREATE TABLE events (
			id        TEXT PRIMARY KEY,
			capacity  INTEGER NOT NULL,
			attendees TEXT NOT NULL
		)
	`).Execute()
	require.NoError(t, err)

	return db
}

func seedEvent(t *testing.T, db *dbx.DB, id string, capacity int, attendees []string) {
	t.Helper()

	raw, err := json.Marshal(attendees)
	require.NoError(t, err)

	_, err = db.NewQuery(`INSERT INTO events (id, capacity, attendees) VALUES ({:id}, {:capacity}, {:attendees})`).
		Bind(dbx.Params{"id": id, "capacity": capacity, "attendees": string(raw)}).
		Execute()
	require.NoError(t, err)
}

func eventAttendees(t *testing.T, db *dbx.DB, id string) []string {
	t.Helper()

	var raw string
	require.NoError(t, db.NewQuery(`SELECT attendees FROM events WHERE id = {:id}`).
		Bind(dbx.Params{"id": id}).
		Row(&raw))

	var attendees []string
	require.NoError(t, json.Unmarshal([]byte(raw), &attendees))
	return attendees
}

// Hammers the conditional append from many goroutines against a real SQLite
// database: exactly capacity-1 joiners get in, nobody is inserted twice and
// the list never passes capacity.
func TestAppendAttendee_ConcurrentCapacity(t *testing.T) {
	const capacity = 10
	const joiners = 50

	db := newEventsDB(t)
	seedEvent(t, db, "e1", capacity, []string{"creator"})

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()

			rows, err := appendAttendee(db, "e1", userID)
			if assert.NoError(t, err) && rows == 1 {
				admitted.Add(1)
			}
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()

	assert.Equal(t, int32(capacity-1), admitted.Load())

	attendees := eventAttendees(t, db, "e1")
	assert.Len(t, attendees, capacity)

	seen := map[string]bool{}
	for _, attendee := range attendees {
		assert.False(t, seen[attendee], attendee)
		seen[attendee] = true
	}
}

func TestAppendAttendee_RejectsDuplicateAndOverflow(t *testing.T) {
	db := newEventsDB(t)
	seedEvent(t, db, "e1", 2, []string{"creator"})

	rows, err := appendAttendee(db, "e1", "creator")
	require.NoError(t, err)
	assert.Zero(t, rows, "member must not be inserted twice")

	rows, err = appendAttendee(db, "e1", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	rows, err = appendAttendee(db, "e1", "u2")
	require.NoError(t, err)
	assert.Zero(t, rows, "full event must not admit")

	assert.Equal(t, []string{"creator", "u1"}, eventAttendees(t, db, "e1"))
}

func TestAppendAttendee_UnknownEvent(t *testing.T) {
	db := newEventsDB(t)

	rows, err := appendAttendee(db, "missing", "u1")
	require.NoError(t, err)
	assert.Zero(t, rows)
}

// stubApp backs Join with a plain SQLite handle and a canned record for the
// classifying re-read.
type stubApp struct {
	core.App
	db     dbx.Builder
	record *core.Record
}

func (a *stubApp) DB() dbx.Builder { return a.db }

func (a *stubApp) FindRecordById(collectionModelOrIdentifier any, recordId string, optFilters ...func(q *dbx.SelectQuery) error) (*core.Record, error) {
	return a.record, nil
}

// A user retrying right after a successful join must read as already
// attending, so the in-flight lock has to be gone by then.
func TestJoin_RepeatJoinClassifiesAsAlreadyAttending(t *testing.T) {
	db := newEventsDB(t)
	seedEvent(t, db, "e1", 3, []string{"creator", "u1"})

	record := core.NewRecord(core.NewBaseCollection("events"))
	record.Set("capacity", 3)
	record.Set("attendees", []string{"creator", "u1"})

	rdb, mock := redismock.NewClientMock()
	mock.ExpectSetNX("join:lock:e1:u1", "1", time.Second).SetVal(true)
	mock.ExpectDel("join:lock:e1:u1").SetVal(1)

	service := &AttendanceService{
		app:     &stubApp{db: db, record: record},
		redis:   rdb,
		lockTTL: time.Second,
	}

	_, err := service.Join(context.Background(), "e1", "u1")

	assert.ErrorIs(t, err, status.ErrAlreadyAttending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoin_InFlightLockRejected(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	service := &AttendanceService{
		redis:   rdb,
		lockTTL: 10 * time.Second,
	}

	mock.ExpectSetNX("join:lock:e1:u1", "1", 10*time.Second).SetVal(false)

	_, err := service.Join(context.Background(), "e1", "u1")

	assert.ErrorIs(t, err, status.ErrJoinInProgress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyNaming(t *testing.T) {
	assert.Equal(t, "join:lock:e1:u1", joinLockKey("e1", "u1"))
	assert.Equal(t, "event:attendees:e1", attendeeCountKey("e1"))
}
