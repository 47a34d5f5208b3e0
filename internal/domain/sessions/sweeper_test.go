package sessions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	due     []WarningDue
	claimed map[int64]bool
	expired []CompletedSession
}

func newFakeStore() *fakeStore {
	return &fakeStore{claimed: map[int64]bool{}}
}

func (f *fakeStore) ExpireDue(_ context.Context) ([]CompletedSession, error) {
	out := f.expired
	f.expired = nil // completed sessions no longer match the predicate
	return out, nil
}

func (f *fakeStore) DueForWarning(_ context.Context, _ time.Duration) ([]WarningDue, error) {
	var out []WarningDue
	for _, d := range f.due {
		if !f.claimed[d.SessionID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) ClaimWarning(_ context.Context, id int64) (bool, error) {
	if f.claimed[id] {
		return false, nil
	}
	f.claimed[id] = true
	return true, nil
}

func (f *fakeStore) UnclaimWarning(_ context.Context, id int64) error {
	delete(f.claimed, id)
	return nil
}

type recordingNotifier struct {
	sent []int64
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, sessionID int64, _ string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sessionID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWarningSweepNotifiesOncePerWindow(t *testing.T) {
	store := newFakeStore()
	end := time.Now().Add(4 * time.Minute)
	store.due = []WarningDue{
		{SessionID: 1, CustomerID: 10, EndTime: end},
		{SessionID: 2, CustomerID: 11, EndTime: end},
	}
	sink := &recordingNotifier{}
	sw := NewSweeper(testLogger(), store, nil, sink)

	sent, err := sw.RunWarningSweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 2}, sink.sent)

	// same window again: nothing new
	sent, err = sw.RunWarningSweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, sink.sent, 2)
}

func TestWarningSweepRetriesAfterDeliveryFailure(t *testing.T) {
	store := newFakeStore()
	store.due = []WarningDue{{SessionID: 5, CustomerID: 20, EndTime: time.Now().Add(time.Minute)}}
	sink := &recordingNotifier{err: errors.New("sink down")}
	sw := NewSweeper(testLogger(), store, nil, sink)

	sent, err := sw.RunWarningSweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, sent)
	// failed delivery releases the claim so the next sweep picks it up again
	assert.False(t, store.claimed[5])

	sink.err = nil
	sent, err = sw.RunWarningSweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{5}, sink.sent)

	// delivered once, the claim sticks
	sent, err = sw.RunWarningSweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, sink.sent, 1)
}

func TestExpirySweepIdempotent(t *testing.T) {
	store := newFakeStore()
	store.expired = []CompletedSession{
		{ID: 1, CustomerID: 10, EndTime: time.Now().Add(-time.Second)},
	}
	sw := NewSweeper(testLogger(), store, nil, &recordingNotifier{})

	n, err := sw.RunExpirySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sw.RunExpirySweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

type fakeLines struct {
	due    []int64
	failOn map[int64]error
	done   []int64
}

func (f *fakeLines) DueLineIDs(_ context.Context) ([]int64, error) { return f.due, nil }

func (f *fakeLines) ExpireLine(_ context.Context, id int64) error {
	if err := f.failOn[id]; err != nil {
		return err
	}
	f.done = append(f.done, id)
	return nil
}

func TestLineExpirySweepContinuesPastFailures(t *testing.T) {
	lines := &fakeLines{
		due:    []int64{1, 2, 3},
		failOn: map[int64]error{2: errors.New("deadlock")},
	}
	sw := NewSweeper(testLogger(), newFakeStore(), lines, &recordingNotifier{})

	n, err := sw.RunLineExpirySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 3}, lines.done)
}

func TestMinutesRemaining(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 5, minutesRemaining(now.Add(5*time.Minute), now))
	assert.Equal(t, 0, minutesRemaining(now.Add(-time.Minute), now))
	assert.Equal(t, 3, minutesRemaining(now.Add(3*time.Minute+10*time.Second), now))
}

func TestWarningMessage(t *testing.T) {
	now := time.Now()
	d := WarningDue{SessionID: 9, CustomerID: 42, EndTime: now.Add(2 * time.Minute)}
	assert.Equal(t, "session 9 (customer 42) ends in 2 min", warningMessage(d, now))
}
