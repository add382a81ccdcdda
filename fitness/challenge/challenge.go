/*
Package challenge assigns the daily challenges of users.

Every user gets one daily challenge per level which stays the same for 24 hours,
and one cardio challenge of ten exercises which is replaced every day at noon.
The assignments are kept in a Store, typically a registry accessor.
*/
package challenge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/workfit/fitness/catalog"
	"github.com/relabs-tech/workfit/fitness/relay"
)

// DailyWindow is how long a daily challenge stays assigned
const DailyWindow = 24 * time.Hour

// ErrUnknownPart is returned when completing a part other than resistance, cardio or stretching
var ErrUnknownPart = errors.New("unknown challenge part")

// ErrUnknownExercise is returned when completing an exercise which is not part of the cardio challenge
var ErrUnknownExercise = errors.New("exercise is not part of the challenge")

// Store keeps timestamped values. registry.Accessor implements it.
type Store interface {
	Read(ctx context.Context, key string, value interface{}) (time.Time, error)
	Write(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// CardioSource provides the pool of cardio exercises
type CardioSource interface {
	CardioExerciseList(ctx context.Context) ([]relay.Exercise, error)
}

// Builder is the configuration of the challenge service
type Builder struct {
	// Catalog provides the daily challenges. This is mandatory.
	Catalog *catalog.Catalog
	// Cardio provides the cardio exercises. This is mandatory.
	Cardio CardioSource
	// DailyStore keeps the daily challenges. This is mandatory.
	DailyStore Store
	// CardioStore keeps the cardio challenges. This is mandatory.
	CardioStore Store
	// Location is the time zone of the noon reset. Defaults to time.Local.
	Location *time.Location
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Rand is the source of randomness. Defaults to a time seeded source.
	Rand *rand.Rand
}

// Service assigns and tracks challenges
type Service struct {
	catalog     *catalog.Catalog
	cardio      CardioSource
	dailyStore  Store
	cardioStore Store
	location    *time.Location
	now         func() time.Time

	mutex sync.Mutex
	locks map[string]*userLock

	rndMutex sync.Mutex
	rnd      *rand.Rand
}

// userLock serializes the requests of one user
type userLock struct {
	sync.Mutex
	refs int
}

// New creates a challenge service
func New(b Builder) *Service {
	if b.Catalog == nil || b.Cardio == nil || b.DailyStore == nil || b.CardioStore == nil {
		panic("challenge service needs a catalog, a cardio source and stores")
	}
	s := &Service{
		catalog:     b.Catalog,
		cardio:      b.Cardio,
		dailyStore:  b.DailyStore,
		cardioStore: b.CardioStore,
		location:    b.Location,
		now:         b.Now,
		rnd:         b.Rand,
		locks:       map[string]*userLock{},
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// NextReset returns the next noon in loc strictly after now
func NextReset(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	noon := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
	if !t.Before(noon) {
		noon = noon.AddDate(0, 0, 1)
	}
	return noon
}

// FormatCountdown renders a duration as "{h}h {m}m {s}s"
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// lockUser locks the challenges of one user and returns the unlock function.
// Requests of different users do not wait for each other.
func (s *Service) lockUser(userID uuid.UUID) func() {
	key := userID.String()
	s.mutex.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &userLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mutex.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mutex.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mutex.Unlock()
	}
}

func (s *Service) intn(n int) int {
	s.rndMutex.Lock()
	defer s.rndMutex.Unlock()
	return s.rnd.Intn(n)
}

func userKey(userID uuid.UUID, suffix string) string {
	if suffix == "" {
		return userID.String()
	}
	return userID.String() + ":" + suffix
}
