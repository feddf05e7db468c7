package reaper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/repository"
)

type endCall struct {
	logout time.Time
	count  int
}

type fakeSessionRepo struct {
	active   []domain.Session
	ends     map[uuid.UUID]endCall
	raceLost map[uuid.UUID]bool
}

func (f *fakeSessionRepo) Insert(ctx context.Context, db repository.DBTX, s *domain.Session) error {
	return nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, db repository.DBTX, id uuid.UUID) (*domain.Session, error) {
	return nil, nil
}

func (f *fakeSessionRepo) BindUser(ctx context.Context, db repository.DBTX, id uuid.UUID, userID string) error {
	return nil
}

func (f *fakeSessionRepo) End(ctx context.Context, db repository.DBTX, id uuid.UUID, logoutTime time.Time, actionCount int) (int64, error) {
	if f.raceLost[id] {
		return 0, nil
	}
	if f.ends == nil {
		f.ends = make(map[uuid.UUID]endCall)
	}
	f.ends[id] = endCall{logout: logoutTime, count: actionCount}
	return 1, nil
}

func (f *fakeSessionRepo) UpdateSuspiciousVerdict(ctx context.Context, db repository.DBTX, id uuid.UUID, suspicious bool, flags string, detectedAt time.Time) error {
	return nil
}

func (f *fakeSessionRepo) ListActiveAfter(ctx context.Context, db repository.DBTX, cursor int64, limit int) ([]domain.Session, error) {
	var out []domain.Session
	for _, s := range f.active {
		if s.Seq > cursor {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) ListRecentByUser(ctx context.Context, db repository.DBTX, tenantID uuid.UUID, userID string, exclude uuid.UUID, limit int) ([]domain.Session, error) {
	return nil, nil
}

type fakeActivityRepo struct {
	latest map[uuid.UUID]*domain.ActivityLogEntry
	counts map[uuid.UUID]int
	fail   map[uuid.UUID]bool
}

func (f *fakeActivityRepo) Append(ctx context.Context, db repository.DBTX, entry *domain.ActivityLogEntry) error {
	return nil
}

func (f *fakeActivityRepo) LatestBySession(ctx context.Context, db repository.DBTX, sessionID uuid.UUID) (*domain.ActivityLogEntry, error) {
	if f.fail[sessionID] {
		return nil, errors.New("activity store unavailable")
	}
	return f.latest[sessionID], nil
}

func (f *fakeActivityRepo) CountBySession(ctx context.Context, db repository.DBTX, sessionID uuid.UUID) (int, error) {
	return f.counts[sessionID], nil
}

func (f *fakeActivityRepo) ListBySession(ctx context.Context, db repository.DBTX, sessionID uuid.UUID, limit int) ([]domain.ActivityLogEntry, error) {
	return nil, nil
}

type fakePublisher struct {
	msgs []domain.RiskCheckMessage
}

func (f *fakePublisher) PublishRiskCheck(ctx context.Context, msg domain.RiskCheckMessage) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func testConfig() Config {
	return Config{
		Interval:      time.Minute,
		IdleThreshold: 5 * time.Minute,
		LogoutGrace:   30 * time.Second,
		BatchSize:     100,
	}
}

func newTestReaper(sessions *fakeSessionRepo, activities *fakeActivityRepo, publisher *fakePublisher, cfg Config) *Reaper {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(nil, sessions, activities, publisher, cfg, logger)
}

func activeSession(seq int64) domain.Session {
	return domain.Session{
		ID:        uuid.New(),
		Seq:       seq,
		TenantID:  uuid.New(),
		IP:        "198.51.100.4",
		LoginTime: time.Now().Add(-time.Hour),
		Active:    true,
	}
}

func TestSweepClosesIdleSession(t *testing.T) {
	s := activeSession(1)
	lastSeen := time.Now().Add(-6 * time.Minute)

	sessions := &fakeSessionRepo{active: []domain.Session{s}}
	activities := &fakeActivityRepo{
		latest: map[uuid.UUID]*domain.ActivityLogEntry{s.ID: {SessionID: s.ID, OccurredAt: lastSeen}},
		counts: map[uuid.UUID]int{s.ID: 7},
	}
	publisher := &fakePublisher{}
	r := newTestReaper(sessions, activities, publisher, testConfig())

	r.Sweep(context.Background())

	call, ok := sessions.ends[s.ID]
	require.True(t, ok, "idle session should be closed")
	assert.Equal(t, lastSeen.Add(30*time.Second), call.logout)
	assert.Equal(t, 7, call.count)

	require.Len(t, publisher.msgs, 1)
	assert.Equal(t, domain.RiskCheckSession, publisher.msgs[0].Kind)
	assert.Equal(t, s.ID, publisher.msgs[0].SessionID)
}

func TestSweepLeavesFreshSession(t *testing.T) {
	s := activeSession(1)
	sessions := &fakeSessionRepo{active: []domain.Session{s}}
	activities := &fakeActivityRepo{
		latest: map[uuid.UUID]*domain.ActivityLogEntry{s.ID: {SessionID: s.ID, OccurredAt: time.Now().Add(-2 * time.Minute)}},
	}
	publisher := &fakePublisher{}
	r := newTestReaper(sessions, activities, publisher, testConfig())

	r.Sweep(context.Background())

	assert.Empty(t, sessions.ends)
	assert.Empty(t, publisher.msgs)
}

func TestSweepSkipsSessionWithoutActivity(t *testing.T) {
	s := activeSession(1)
	sessions := &fakeSessionRepo{active: []domain.Session{s}}
	activities := &fakeActivityRepo{}
	publisher := &fakePublisher{}
	r := newTestReaper(sessions, activities, publisher, testConfig())

	r.Sweep(context.Background())

	assert.Empty(t, sessions.ends)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	broken := activeSession(1)
	idle := activeSession(2)
	lastSeen := time.Now().Add(-10 * time.Minute)

	sessions := &fakeSessionRepo{active: []domain.Session{broken, idle}}
	activities := &fakeActivityRepo{
		latest: map[uuid.UUID]*domain.ActivityLogEntry{idle.ID: {SessionID: idle.ID, OccurredAt: lastSeen}},
		counts: map[uuid.UUID]int{idle.ID: 3},
		fail:   map[uuid.UUID]bool{broken.ID: true},
	}
	publisher := &fakePublisher{}
	r := newTestReaper(sessions, activities, publisher, testConfig())

	r.Sweep(context.Background())

	assert.NotContains(t, sessions.ends, broken.ID)
	assert.Contains(t, sessions.ends, idle.ID)
}

func TestSweepSkipsRaceLostSession(t *testing.T) {
	s := activeSession(1)
	sessions := &fakeSessionRepo{
		active:   []domain.Session{s},
		raceLost: map[uuid.UUID]bool{s.ID: true},
	}
	activities := &fakeActivityRepo{
		latest: map[uuid.UUID]*domain.ActivityLogEntry{s.ID: {SessionID: s.ID, OccurredAt: time.Now().Add(-10 * time.Minute)}},
	}
	publisher := &fakePublisher{}
	r := newTestReaper(sessions, activities, publisher, testConfig())

	r.Sweep(context.Background())

	assert.Empty(t, publisher.msgs, "a session ended elsewhere must not publish again")
}

func TestSweepPaginatesBySeqCursor(t *testing.T) {
	first := activeSession(1)
	second := activeSession(2)
	lastSeen := time.Now().Add(-20 * time.Minute)

	sessions := &fakeSessionRepo{active: []domain.Session{first, second}}
	activities := &fakeActivityRepo{
		latest: map[uuid.UUID]*domain.ActivityLogEntry{
			first.ID:  {SessionID: first.ID, OccurredAt: lastSeen},
			second.ID: {SessionID: second.ID, OccurredAt: lastSeen},
		},
		counts: map[uuid.UUID]int{first.ID: 1, second.ID: 2},
	}
	publisher := &fakePublisher{}

	cfg := testConfig()
	cfg.BatchSize = 1
	r := newTestReaper(sessions, activities, publisher, cfg)

	r.Sweep(context.Background())

	assert.Len(t, sessions.ends, 2, "cursor batches must cover the whole scan")
	assert.Len(t, publisher.msgs, 2)
}
