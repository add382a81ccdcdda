package challenge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/workfit/fitness/catalog"
	"github.com/relabs-tech/workfit/fitness/relay"
)

// memoryStore is an in-memory Store
type memoryStore struct {
	mutex  sync.Mutex
	values map[string][]byte
	clears int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string][]byte{}}
}

func (m *memoryStore) Read(ctx context.Context, key string, value interface{}) (time.Time, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	data, ok := m.values[key]
	if !ok {
		return time.Time{}, nil
	}
	return time.Now(), json.Unmarshal(data, value)
}

func (m *memoryStore) Write(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	m.values[key] = data
	m.mutex.Unlock()
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mutex.Lock()
	delete(m.values, key)
	m.mutex.Unlock()
	return nil
}

func (m *memoryStore) Clear(ctx context.Context) error {
	m.mutex.Lock()
	m.values = map[string][]byte{}
	m.clears++
	m.mutex.Unlock()
	return nil
}

type fakeCardio struct {
	calls     int
	exercises []relay.Exercise
	err       error
}

func (f *fakeCardio) CardioExerciseList(ctx context.Context) ([]relay.Exercise, error) {
	f.calls++
	return f.exercises, f.err
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	service     *Service
	clock       *clock
	cardio      *fakeCardio
	dailyStore  *memoryStore
	cardioStore *memoryStore
}

func newFixture(t *testing.T, start time.Time) *fixture {
	c, err := catalog.Load()
	require.NoError(t, err)
	f := &fixture{
		clock:       &clock{t: start},
		cardio:      &fakeCardio{},
		dailyStore:  newMemoryStore(),
		cardioStore: newMemoryStore(),
	}
	for i := 0; i < 25; i++ {
		f.cardio.exercises = append(f.cardio.exercises, relay.Exercise{ID: fmt.Sprintf("%04d", i), Name: fmt.Sprintf("exercise %d", i)})
	}
	f.service = New(Builder{
		Catalog:     c,
		Cardio:      f.cardio,
		DailyStore:  f.dailyStore,
		CardioStore: f.cardioStore,
		Location:    time.UTC,
		Now:         f.clock.now,
		Rand:        rand.New(rand.NewSource(42)),
	})
	return f
}

func TestNextReset(t *testing.T) {
	morning := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), NextReset(morning, time.UTC))

	noon := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC), NextReset(noon, time.UTC))

	evening := time.Date(2024, 12, 31, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), NextReset(evening, time.UTC))
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "2h 30m 5s", FormatCountdown(2*time.Hour+30*time.Minute+5*time.Second))
	assert.Equal(t, "0h 0m 0s", FormatCountdown(0))
	assert.Equal(t, "0h 0m 0s", FormatCountdown(-time.Second))
	assert.Equal(t, "23h 59m 59s", FormatCountdown(24*time.Hour-time.Second))
}

func TestDailyStaysForWindow(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()
	user := uuid.New()

	first, err := f.service.Daily(ctx, user, catalog.Beginner)
	require.NoError(t, err)
	assert.Equal(t, catalog.Beginner, first.Level)
	assert.Equal(t, f.clock.t.Add(DailyWindow), first.ExpiresAt)

	f.clock.advance(DailyWindow)
	again, err := f.service.Daily(ctx, user, catalog.Beginner)
	require.NoError(t, err)
	assert.Equal(t, first.AssignedAt, again.AssignedAt)
	assert.Equal(t, first.Challenge, again.Challenge)

	f.clock.advance(time.Second)
	next, err := f.service.Daily(ctx, user, catalog.Beginner)
	require.NoError(t, err)
	assert.Equal(t, f.clock.t, next.AssignedAt)
}

func TestDailyLevelsAreIndependent(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()
	user := uuid.New()

	_, err := f.service.MarkComplete(ctx, user, catalog.Beginner, PartCardio)
	require.NoError(t, err)

	advanced, err := f.service.Daily(ctx, user, catalog.Advanced)
	require.NoError(t, err)
	assert.Equal(t, Completion{}, advanced.Completed)

	_, err = f.service.Daily(ctx, user, catalog.Level("Expert"))
	assert.ErrorIs(t, err, catalog.ErrUnknownLevel)
}

func TestDailyCompletion(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()
	user := uuid.New()

	daily, err := f.service.MarkComplete(ctx, user, catalog.Intermediate, PartResistance)
	require.NoError(t, err)
	assert.Equal(t, Completion{Resistance: true}, daily.Completed)

	_, err = f.service.MarkComplete(ctx, user, catalog.Intermediate, "yoga")
	assert.ErrorIs(t, err, ErrUnknownPart)

	daily, err = f.service.Daily(ctx, user, catalog.Intermediate)
	require.NoError(t, err)
	assert.Equal(t, Completion{Resistance: true}, daily.Completed)

	daily, err = f.service.MarkAllComplete(ctx, user, catalog.Intermediate)
	require.NoError(t, err)
	assert.Equal(t, Completion{Resistance: true, Cardio: true, Stretching: true}, daily.Completed)

	f.clock.advance(DailyWindow + time.Minute)
	daily, err = f.service.Daily(ctx, user, catalog.Intermediate)
	require.NoError(t, err)
	assert.Equal(t, Completion{}, daily.Completed)
}

func TestCardioChallenge(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	user := uuid.New()

	c, err := f.service.Cardio(ctx, user)
	require.NoError(t, err)
	require.Len(t, c.Exercises, CardioChallengeSize)
	ids := map[string]bool{}
	for _, e := range c.Exercises {
		assert.Contains(t, []int{10, 20, 30}, e.RandomValue)
		assert.False(t, ids[e.ID])
		ids[e.ID] = true
	}
	assert.Equal(t, "3h 0m 0s", c.TimeUntilReset)
	assert.Equal(t, 0, c.CompletedCount)

	c, err = f.service.MarkCardioComplete(ctx, user, c.Exercises[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.CompletedCount)
	assert.True(t, c.Completed[c.Exercises[0].ID])

	_, err = f.service.MarkCardioComplete(ctx, user, "not-there")
	assert.ErrorIs(t, err, ErrUnknownExercise)

	f.clock.advance(time.Hour)
	again, err := f.service.Cardio(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, c.Exercises, again.Exercises)
	assert.Equal(t, 1, again.CompletedCount)
	assert.Equal(t, "2h 0m 0s", again.TimeUntilReset)
	assert.Equal(t, 1, f.cardio.calls)
}

func TestCardioExpiresAtNoon(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC))
	ctx := context.Background()
	user := uuid.New()

	c, err := f.service.Cardio(ctx, user)
	require.NoError(t, err)
	_, err = f.service.MarkCardioComplete(ctx, user, c.Exercises[0].ID)
	require.NoError(t, err)

	f.clock.advance(time.Hour)
	fresh, err := f.service.Cardio(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, f.cardio.calls)
	assert.Equal(t, 0, fresh.CompletedCount)
	assert.Empty(t, fresh.Completed)
	assert.Equal(t, f.clock.t, fresh.FetchedAt)
	assert.Equal(t, "24h 0m 0s", fresh.TimeUntilReset)
}

func TestCardioWithFewExercises(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC))
	f.cardio.exercises = f.cardio.exercises[:3]

	c, err := f.service.Cardio(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, c.Exercises, 3)
}

func TestCardioFetchError(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC))
	f.cardio.err = errors.New("upstream down")

	_, err := f.service.Cardio(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "upstream down")
	assert.Empty(t, f.cardioStore.values)
}

func TestResetter(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := f.service.Cardio(ctx, uuid.New())
	require.NoError(t, err)

	var waits []time.Duration
	r := f.service.Resetter()
	r.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		if len(waits) > 1 {
			cancel()
			return nil
		}
		ch := make(chan time.Time, 1)
		ch <- f.clock.t
		return ch
	}

	err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.cardioStore.clears)
	assert.Empty(t, f.cardioStore.values)
	assert.Equal(t, 3*time.Hour, waits[0])
}

func TestUserKeys(t *testing.T) {
	user := uuid.New()
	assert.Equal(t, user.String(), userKey(user, ""))
	assert.True(t, strings.HasSuffix(userKey(user, "Beginner"), ":Beginner"))
}

// stalledCardio blocks its first call until released
type stalledCardio struct {
	mutex     sync.Mutex
	calls     int
	entered   chan struct{}
	release   chan struct{}
	exercises []relay.Exercise
}

func (s *stalledCardio) CardioExerciseList(ctx context.Context) ([]relay.Exercise, error) {
	s.mutex.Lock()
	s.calls++
	first := s.calls == 1
	s.mutex.Unlock()
	if first {
		close(s.entered)
		<-s.release
	}
	return s.exercises, nil
}

func TestUsersDoNotWaitForEachOther(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	stalled := &stalledCardio{
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
		exercises: f.cardio.exercises,
	}
	f.service.cardio = stalled
	ctx := context.Background()
	slowUser, otherUser := uuid.New(), uuid.New()

	done := make(chan error, 1)
	go func() {
		_, err := f.service.Cardio(ctx, slowUser)
		done <- err
	}()
	<-stalled.entered

	finished := make(chan error, 1)
	go func() {
		if _, err := f.service.Daily(ctx, otherUser, catalog.Beginner); err != nil {
			finished <- err
			return
		}
		_, err := f.service.Cardio(ctx, otherUser)
		finished <- err
	}()
	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("other user was blocked by a pending cardio fetch")
	}

	close(stalled.release)
	require.NoError(t, <-done)

	f.service.mutex.Lock()
	assert.Empty(t, f.service.locks)
	f.service.mutex.Unlock()
}

func TestSameUserIsSerialized(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	stalled := &stalledCardio{
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
		exercises: f.cardio.exercises,
	}
	f.service.cardio = stalled
	ctx := context.Background()
	user := uuid.New()

	first := make(chan *Cardio, 1)
	go func() {
		c, _ := f.service.Cardio(ctx, user)
		first <- c
	}()
	<-stalled.entered

	second := make(chan *Cardio, 1)
	go func() {
		c, _ := f.service.Cardio(ctx, user)
		second <- c
	}()
	select {
	case <-second:
		t.Fatal("second request of the same user did not wait")
	case <-time.After(50 * time.Millisecond):
	}

	close(stalled.release)
	a, b := <-first, <-second
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.Exercises, b.Exercises)
	assert.Equal(t, 1, stalled.calls)
}
