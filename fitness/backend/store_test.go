package backend

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// memoryStore is an in-memory Store with the semantics of the postgres store
type memoryStore struct {
	mutex     sync.Mutex
	users     map[uuid.UUID]*User
	friends   map[uuid.UUID][]string
	schedules map[uuid.UUID]map[string]ScheduleEntry
	recipes   map[uuid.UUID][]SavedRecipe
	pingErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:     map[uuid.UUID]*User{},
		friends:   map[uuid.UUID][]string{},
		schedules: map[uuid.UUID]map[string]ScheduleEntry{},
		recipes:   map[uuid.UUID][]SavedRecipe{},
	}
}

func (m *memoryStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *memoryStore) CreateUser(ctx context.Context, user *User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrConflict
		}
	}
	u := *user
	m.users[user.UserID] = &u
	return nil
}

func (m *memoryStore) find(match func(u *User) bool) (*User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, u := range m.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) UserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	return m.find(func(u *User) bool { return u.UserID == userID })
}

func (m *memoryStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return m.find(func(u *User) bool { return u.Email == email })
}

func (m *memoryStore) UserByFriendID(ctx context.Context, friendID string) (*User, error) {
	return m.find(func(u *User) bool { return u.FriendID != "" && u.FriendID == friendID })
}

func (m *memoryStore) UpdateProfile(ctx context.Context, userID uuid.UUID, friendID string, profile Profile) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	for _, other := range m.users {
		if other.UserID != userID && other.FriendID == friendID {
			return ErrConflict
		}
	}
	u.FriendID = friendID
	u.Profile = profile
	u.ProfileComplete = true
	return nil
}

func (m *memoryStore) SetImageKey(ctx context.Context, userID uuid.UUID, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.ImageKey = key
	return nil
}

func (m *memoryStore) AddFriend(ctx context.Context, userID uuid.UUID, friendID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, f := range m.friends[userID] {
		if f == friendID {
			return ErrConflict
		}
	}
	m.friends[userID] = append(m.friends[userID], friendID)
	return nil
}

func (m *memoryStore) Friends(ctx context.Context, userID uuid.UUID) ([]string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.friends[userID]...), nil
}

func (m *memoryStore) PutSchedule(ctx context.Context, userID uuid.UUID, entry ScheduleEntry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.schedules[userID] == nil {
		m.schedules[userID] = map[string]ScheduleEntry{}
	}
	m.schedules[userID][entry.Date] = entry
	return nil
}

func (m *memoryStore) Schedule(ctx context.Context, userID uuid.UUID, from, to string) ([]ScheduleEntry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var entries []ScheduleEntry
	for date, e := range m.schedules[userID] {
		if date >= from && date <= to {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	return entries, nil
}

func (m *memoryStore) DeleteSchedule(ctx context.Context, userID uuid.UUID, date string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.schedules[userID][date]; !ok {
		return ErrNotFound
	}
	delete(m.schedules[userID], date)
	return nil
}

func (m *memoryStore) SaveRecipe(ctx context.Context, userID uuid.UUID, recipe SavedRecipe) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i, r := range m.recipes[userID] {
		if r.ID == recipe.ID {
			m.recipes[userID][i] = recipe
			return false, nil
		}
	}
	m.recipes[userID] = append(m.recipes[userID], recipe)
	return true, nil
}

func (m *memoryStore) Recipes(ctx context.Context, userID uuid.UUID) ([]SavedRecipe, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]SavedRecipe(nil), m.recipes[userID]...), nil
}

func (m *memoryStore) DeleteRecipe(ctx context.Context, userID uuid.UUID, recipeID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i, r := range m.recipes[userID] {
		if r.ID == recipeID {
			m.recipes[userID] = append(m.recipes[userID][:i], m.recipes[userID][i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// registryStore is an in-memory challenge store
type registryStore struct {
	mutex  sync.Mutex
	values map[string][]byte
}

func newRegistryStore() *registryStore {
	return &registryStore{values: map[string][]byte{}}
}

func (r *registryStore) Read(ctx context.Context, key string, value interface{}) (time.Time, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	data, ok := r.values[key]
	if !ok {
		return time.Time{}, nil
	}
	return time.Now(), json.Unmarshal(data, value)
}

func (r *registryStore) Write(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mutex.Lock()
	r.values[key] = data
	r.mutex.Unlock()
	return nil
}

func (r *registryStore) Delete(ctx context.Context, key string) error {
	r.mutex.Lock()
	delete(r.values, key)
	r.mutex.Unlock()
	return nil
}

func (r *registryStore) Clear(ctx context.Context) error {
	r.mutex.Lock()
	r.values = map[string][]byte{}
	r.mutex.Unlock()
	return nil
}
