package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockSessionPurger struct {
	mu    sync.Mutex
	calls int
	now   time.Time
	count int64
	err   error
}

func (m *mockSessionPurger) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.now = now
	return m.count, m.err
}

func (m *mockSessionPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockTokenPurger struct {
	calls int
	count int64
	err   error
}

func (m *mockTokenPurger) DeleteSpent(ctx context.Context, now time.Time) (int64, error) {
	m.calls++
	return m.count, m.err
}

type mockRecorder struct {
	deleted map[string]int64
}

func (m *mockRecorder) RecordCleanupDeleted(kind string, count int64) {
	if m.deleted == nil {
		m.deleted = make(map[string]int64)
	}
	m.deleted[kind] += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestCleanupJob_Run_DeletesAndRecords(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSessionPurger{count: 3}
	tokens := &mockTokenPurger{count: 7}
	rec := &mockRecorder{}
	job := NewCleanupJob(sessions, tokens, newTestLogger(&buf), rec)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !sessions.now.Equal(fixed) {
		t.Errorf("DeleteExpired now = %v, want %v", sessions.now, fixed)
	}
	if rec.deleted[KindSessions] != 3 || rec.deleted[KindAuthTokens] != 7 {
		t.Errorf("recorded = %v", rec.deleted)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v\nraw: %s", err, buf.String())
	}
	if entry["deleted_sessions"] != float64(3) || entry["deleted_auth_tokens"] != float64(7) {
		t.Errorf("log entry = %v", entry)
	}
}

func TestCleanupJob_Run_NothingToDelete(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionPurger{}, &mockTokenPurger{}, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestCleanupJob_Run_SessionFailureStillPurgesTokens(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSessionPurger{err: errors.New("connection refused")}
	tokens := &mockTokenPurger{count: 2}
	rec := &mockRecorder{}
	job := NewCleanupJob(sessions, tokens, newTestLogger(&buf), rec)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should return the session error")
	}
	if !strings.Contains(err.Error(), "expired sessions") {
		t.Errorf("error = %v", err)
	}
	if tokens.calls != 1 {
		t.Errorf("DeleteSpent calls = %d, want 1", tokens.calls)
	}
	if _, ok := rec.deleted[KindSessions]; ok {
		t.Error("failed purge should not be recorded")
	}
	if rec.deleted[KindAuthTokens] != 2 {
		t.Errorf("recorded tokens = %d, want 2", rec.deleted[KindAuthTokens])
	}
	if !strings.Contains(buf.String(), "failed to delete expired sessions") {
		t.Errorf("error should be logged, got %s", buf.String())
	}
}

func TestCleanupJob_Run_TokenFailure(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionPurger{}, &mockTokenPurger{err: errors.New("timeout")}, newTestLogger(&buf), nil)

	err := job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "auth tokens") {
		t.Errorf("Run() error = %v", err)
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSessionPurger{}
	job := NewCleanupJob(sessions, &mockTokenPurger{}, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sessions.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Start should run the job immediately")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start should return after cancel")
	}
}

func TestCleanupJob_Start_NonPositiveInterval_UsesDefault(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Minute} {
		t.Run(interval.String(), func(t *testing.T) {
			var buf bytes.Buffer
			sessions := &mockSessionPurger{}
			job := NewCleanupJob(sessions, &mockTokenPurger{}, newTestLogger(&buf), nil)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				job.Start(ctx, interval)
			}()

			deadline := time.After(2 * time.Second)
			for sessions.callCount() == 0 {
				select {
				case <-deadline:
					t.Fatal("Start should run the job immediately")
				case <-time.After(10 * time.Millisecond):
				}
			}

			cancel()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Start should return after cancel")
			}
			if !strings.Contains(buf.String(), "cleanup interval is not positive") {
				t.Errorf("log should warn about the interval, got %s", buf.String())
			}
		})
	}
}
