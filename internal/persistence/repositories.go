package persistence

import (
	"context"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
)

// GroupManagerDb stores named schedules, the members bound to them and the
// group key pairs minted for each E-Key name.
//
// Members are addressed by identity, the key name without its last two
// components. Deleting a schedule deletes its members.
type GroupManagerDb interface {
	HasSchedule(ctx context.Context, name string) (bool, error)
	ListAllScheduleNames(ctx context.Context) ([]string, error)
	GetSchedule(ctx context.Context, name string) (*schedule.Schedule, error)
	// GetScheduleMembers returns the members of a schedule ordered by key name.
	GetScheduleMembers(ctx context.Context, name string) ([]Member, error)
	AddSchedule(ctx context.Context, name string, s *schedule.Schedule) error
	DeleteSchedule(ctx context.Context, name string) error
	RenameSchedule(ctx context.Context, oldName, newName string) error
	// UpdateSchedule replaces a schedule, adding it when absent.
	UpdateSchedule(ctx context.Context, name string, s *schedule.Schedule) error

	HasMember(ctx context.Context, identity ndn.Name) (bool, error)
	ListAllMembers(ctx context.Context) ([]ndn.Name, error)
	GetMemberSchedule(ctx context.Context, identity ndn.Name) (string, error)
	AddMember(ctx context.Context, scheduleName string, keyName ndn.Name, publicKey []byte) error
	UpdateMemberSchedule(ctx context.Context, identity ndn.Name, scheduleName string) error
	DeleteMember(ctx context.Context, identity ndn.Name) error

	HasEKey(ctx context.Context, eKeyName ndn.Name) (bool, error)
	AddEKey(ctx context.Context, eKeyName ndn.Name, pair KeyPair) error
	GetEKey(ctx context.Context, eKeyName ndn.Name) (KeyPair, error)
	DeleteEKey(ctx context.Context, eKeyName ndn.Name) error
	CleanEKeys(ctx context.Context) error
}

// ProducerDb maps a time bucket start to its content key.
type ProducerDb interface {
	HasContentKey(ctx context.Context, bucket time.Time) (bool, error)
	GetContentKey(ctx context.Context, bucket time.Time) ([]byte, error)
	// AddContentKey fails with ErrDuplicate when the bucket already has a
	// key; the stored key is left untouched.
	AddContentKey(ctx context.Context, bucket time.Time, key []byte) error
	DeleteContentKey(ctx context.Context, bucket time.Time) error
}

// ConsumerDb stores decryption keys by key name.
type ConsumerDb interface {
	GetKey(ctx context.Context, keyName ndn.Name) ([]byte, error)
	AddKey(ctx context.Context, keyName ndn.Name, key []byte) error
	DeleteKey(ctx context.Context, keyName ndn.Name) error
}

// BucketKey is the canonical text key of a time bucket.
func BucketKey(bucket time.Time) string {
	return schedule.ToIsoString(bucket)
}
