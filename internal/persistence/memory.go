package persistence

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
)

// MemoryStore is an in-process implementation of GroupManagerDb, ProducerDb
// and ConsumerDb.
type MemoryStore struct {
	mu          sync.RWMutex
	schedules   map[string]*schedule.Schedule
	members     map[string]Member
	eKeys       map[string]KeyPair
	contentKeys map[string][]byte
	keys        map[string][]byte
}

var (
	_ GroupManagerDb = (*MemoryStore)(nil)
	_ ProducerDb     = (*MemoryStore)(nil)
	_ ConsumerDb     = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedules:   make(map[string]*schedule.Schedule),
		members:     make(map[string]Member),
		eKeys:       make(map[string]KeyPair),
		contentKeys: make(map[string][]byte),
		keys:        make(map[string][]byte),
	}
}

// --- schedules ---

func (s *MemoryStore) HasSchedule(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.schedules[name]
	return ok, nil
}

func (s *MemoryStore) ListAllScheduleNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.schedules))
	for name := range s.schedules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) GetSchedule(_ context.Context, name string) (*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[name]
	if !ok {
		return nil, fmt.Errorf("%w: schedule %q", ErrNotFound, name)
	}
	return sched.Clone(), nil
}

func (s *MemoryStore) GetScheduleMembers(_ context.Context, name string) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.schedules[name]; !ok {
		return nil, fmt.Errorf("%w: schedule %q", ErrNotFound, name)
	}
	var members []Member
	for _, m := range s.members {
		if m.ScheduleName == name {
			members = append(members, cloneMember(m))
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].KeyName.Compare(members[j].KeyName) < 0
	})
	return members, nil
}

func (s *MemoryStore) AddSchedule(_ context.Context, name string, sched *schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[name]; ok {
		return fmt.Errorf("%w: schedule %q", ErrDuplicate, name)
	}
	s.schedules[name] = sched.Clone()
	return nil
}

func (s *MemoryStore) DeleteSchedule(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedules, name)
	for identity, m := range s.members {
		if m.ScheduleName == name {
			delete(s.members, identity)
		}
	}
	return nil
}

func (s *MemoryStore) RenameSchedule(_ context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[oldName]
	if !ok {
		return fmt.Errorf("%w: schedule %q", ErrNotFound, oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, ok := s.schedules[newName]; ok {
		return fmt.Errorf("%w: schedule %q", ErrDuplicate, newName)
	}
	delete(s.schedules, oldName)
	s.schedules[newName] = sched
	for identity, m := range s.members {
		if m.ScheduleName == oldName {
			m.ScheduleName = newName
			s.members[identity] = m
		}
	}
	return nil
}

func (s *MemoryStore) UpdateSchedule(_ context.Context, name string, sched *schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[name] = sched.Clone()
	return nil
}

// --- members ---

func (s *MemoryStore) HasMember(_ context.Context, identity ndn.Name) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[identity.String()]
	return ok, nil
}

func (s *MemoryStore) ListAllMembers(_ context.Context) ([]ndn.Name, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identities := make([]ndn.Name, 0, len(s.members))
	for _, m := range s.members {
		identities = append(identities, m.Identity())
	}
	slices.SortFunc(identities, ndn.Name.Compare)
	return identities, nil
}

func (s *MemoryStore) GetMemberSchedule(_ context.Context, identity ndn.Name) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[identity.String()]
	if !ok {
		return "", fmt.Errorf("%w: member %s", ErrNotFound, identity)
	}
	return m.ScheduleName, nil
}

func (s *MemoryStore) AddMember(_ context.Context, scheduleName string, keyName ndn.Name, publicKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[scheduleName]; !ok {
		return fmt.Errorf("%w: schedule %q", ErrForeignKeyViolation, scheduleName)
	}
	identity := IdentityOf(keyName).String()
	if _, ok := s.members[identity]; ok {
		return fmt.Errorf("%w: member %s", ErrDuplicate, identity)
	}
	s.members[identity] = cloneMember(Member{KeyName: keyName, ScheduleName: scheduleName, PublicKey: publicKey})
	return nil
}

func (s *MemoryStore) UpdateMemberSchedule(_ context.Context, identity ndn.Name, scheduleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[identity.String()]
	if !ok {
		return fmt.Errorf("%w: member %s", ErrNotFound, identity)
	}
	if _, ok := s.schedules[scheduleName]; !ok {
		return fmt.Errorf("%w: schedule %q", ErrForeignKeyViolation, scheduleName)
	}
	m.ScheduleName = scheduleName
	s.members[identity.String()] = m
	return nil
}

func (s *MemoryStore) DeleteMember(_ context.Context, identity ndn.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, identity.String())
	return nil
}

// --- group key pairs ---

func (s *MemoryStore) HasEKey(_ context.Context, eKeyName ndn.Name) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.eKeys[eKeyName.String()]
	return ok, nil
}

func (s *MemoryStore) AddEKey(_ context.Context, eKeyName ndn.Name, pair KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eKeyName.String()
	if _, ok := s.eKeys[key]; ok {
		return fmt.Errorf("%w: e-key %s", ErrDuplicate, key)
	}
	s.eKeys[key] = KeyPair{PublicKey: cloneBytes(pair.PublicKey), PrivateKey: cloneBytes(pair.PrivateKey)}
	return nil
}

func (s *MemoryStore) GetEKey(_ context.Context, eKeyName ndn.Name) (KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pair, ok := s.eKeys[eKeyName.String()]
	if !ok {
		return KeyPair{}, fmt.Errorf("%w: e-key %s", ErrNotFound, eKeyName)
	}
	return KeyPair{PublicKey: cloneBytes(pair.PublicKey), PrivateKey: cloneBytes(pair.PrivateKey)}, nil
}

func (s *MemoryStore) DeleteEKey(_ context.Context, eKeyName ndn.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eKeys, eKeyName.String())
	return nil
}

func (s *MemoryStore) CleanEKeys(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.eKeys)
	return nil
}

// --- content keys ---

func (s *MemoryStore) HasContentKey(_ context.Context, bucket time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.contentKeys[BucketKey(bucket)]
	return ok, nil
}

func (s *MemoryStore) GetContentKey(_ context.Context, bucket time.Time) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.contentKeys[BucketKey(bucket)]
	if !ok {
		return nil, fmt.Errorf("%w: content key %s", ErrNotFound, BucketKey(bucket))
	}
	return cloneBytes(key), nil
}

func (s *MemoryStore) AddContentKey(_ context.Context, bucket time.Time, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := BucketKey(bucket)
	if _, ok := s.contentKeys[id]; ok {
		return fmt.Errorf("%w: content key %s", ErrDuplicate, id)
	}
	s.contentKeys[id] = cloneBytes(key)
	return nil
}

func (s *MemoryStore) DeleteContentKey(_ context.Context, bucket time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contentKeys, BucketKey(bucket))
	return nil
}

// --- consumer keys ---

func (s *MemoryStore) GetKey(_ context.Context, keyName ndn.Name) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[keyName.String()]
	if !ok {
		return nil, fmt.Errorf("%w: key %s", ErrNotFound, keyName)
	}
	return cloneBytes(key), nil
}

func (s *MemoryStore) AddKey(_ context.Context, keyName ndn.Name, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := keyName.String()
	if _, ok := s.keys[id]; ok {
		return fmt.Errorf("%w: key %s", ErrDuplicate, id)
	}
	s.keys[id] = cloneBytes(key)
	return nil
}

func (s *MemoryStore) DeleteKey(_ context.Context, keyName ndn.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyName.String())
	return nil
}
