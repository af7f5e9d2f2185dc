// Package groupmanager grants time-bounded read access to a data type. It
// keeps named schedules and their members, and mints the E-Key every
// producer encrypts content keys with together with one D-Key per member
// able to open it.
package groupmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/encryption"
	"github.com/named-data/ndn-cpp-sub006/internal/keychain"
	"github.com/named-data/ndn-cpp-sub006/internal/logging"
	"github.com/named-data/ndn-cpp-sub006/internal/metrics"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence"
	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
)

// DefaultFreshness is the freshness period of E-Key Data.
const DefaultFreshness = time.Hour

// ErrInvalidCertificate is returned by AddMember when the certificate does
// not carry an RSA public key.
var ErrInvalidCertificate = errors.New("groupmanager: invalid member certificate")

// GroupManager is stateless beyond its GroupManagerDb.
type GroupManager struct {
	namespace ndn.Name
	db        persistence.GroupManagerDb
	signer    keychain.Signer
	certName  ndn.Name
	keySize   int
	freshness time.Duration
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// Option configures a GroupManager.
type Option func(*GroupManager)

// WithKeySize sets the RSA modulus length of generated group key pairs.
func WithKeySize(bits int) Option {
	return func(g *GroupManager) {
		if bits > 0 {
			g.keySize = bits
		}
	}
}

// WithFreshness sets the freshness period of E-Key Data.
func WithFreshness(d time.Duration) Option {
	return func(g *GroupManager) {
		if d > 0 {
			g.freshness = d
		}
	}
}

// WithLogger sets the base logger. A logger carried by the context wins.
func WithLogger(logger *slog.Logger) Option {
	return func(g *GroupManager) {
		g.logger = logger
	}
}

// WithMetrics sets the instrumentation recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(g *GroupManager) {
		if rec != nil {
			g.metrics = rec
		}
	}
}

// New returns a manager for <prefix>/READ/<dataType>. Generated Data are
// signed by signer with the key behind certName.
func New(prefix, dataType ndn.Name, db persistence.GroupManagerDb, signer keychain.Signer, certName ndn.Name, opts ...Option) *GroupManager {
	g := &GroupManager{
		namespace: prefix.AppendString(encryption.NameRead).AppendName(dataType),
		db:        db,
		signer:    signer,
		certName:  certName,
		keySize:   encryption.DefaultRsaKeySize,
		freshness: DefaultFreshness,
		metrics:   metrics.Noop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.Default(g.logger)
	return g
}

// Namespace returns <prefix>/READ/<dataType>.
func (g *GroupManager) Namespace() ndn.Name {
	return g.namespace
}

func (g *GroupManager) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.Operation(ctx, g.logger, "groupmanager", operation, attrs...)
}

func logOutcome(ctx context.Context, logger *slog.Logger, err error, done string) {
	if err != nil {
		logger.ErrorContext(ctx, "operation failed", "error", err, "error_kind", persistence.ErrorKind(err))
		return
	}
	logger.InfoContext(ctx, done)
}

// AddSchedule stores a new schedule. A duplicate name is an integrity
// violation.
func (g *GroupManager) AddSchedule(ctx context.Context, name string, s *schedule.Schedule) (err error) {
	logger := g.loggerWith(ctx, "AddSchedule", "schedule", name)
	defer func() { logOutcome(ctx, logger, err, "schedule added") }()

	if err = g.db.AddSchedule(ctx, name, s); err != nil {
		err = fmt.Errorf("groupmanager: add schedule %q: %w", name, err)
	}
	return
}

// UpdateSchedule replaces the schedule stored under name, adding it when
// absent.
func (g *GroupManager) UpdateSchedule(ctx context.Context, name string, s *schedule.Schedule) (err error) {
	logger := g.loggerWith(ctx, "UpdateSchedule", "schedule", name)
	defer func() { logOutcome(ctx, logger, err, "schedule updated") }()

	if err = g.db.UpdateSchedule(ctx, name, s); err != nil {
		err = fmt.Errorf("groupmanager: update schedule %q: %w", name, err)
	}
	return
}

// DeleteSchedule removes a schedule and every member bound to it.
func (g *GroupManager) DeleteSchedule(ctx context.Context, name string) (err error) {
	logger := g.loggerWith(ctx, "DeleteSchedule", "schedule", name)
	defer func() { logOutcome(ctx, logger, err, "schedule deleted") }()

	if err = g.db.DeleteSchedule(ctx, name); err != nil {
		err = fmt.Errorf("groupmanager: delete schedule %q: %w", name, err)
	}
	return
}

// RenameSchedule renames a schedule, keeping its members.
func (g *GroupManager) RenameSchedule(ctx context.Context, oldName, newName string) (err error) {
	logger := g.loggerWith(ctx, "RenameSchedule", "schedule", oldName, "new_name", newName)
	defer func() { logOutcome(ctx, logger, err, "schedule renamed") }()

	if err = g.db.RenameSchedule(ctx, oldName, newName); err != nil {
		err = fmt.Errorf("groupmanager: rename schedule %q: %w", oldName, err)
	}
	return
}

// GetSchedule returns the schedule stored under name.
func (g *GroupManager) GetSchedule(ctx context.Context, name string) (*schedule.Schedule, error) {
	s, err := g.db.GetSchedule(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("groupmanager: get schedule %q: %w", name, err)
	}
	return s, nil
}

// ListScheduleNames returns every schedule name in ascending order.
func (g *GroupManager) ListScheduleNames(ctx context.Context) ([]string, error) {
	names, err := g.db.ListAllScheduleNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("groupmanager: list schedules: %w", err)
	}
	return names, nil
}

// AddMember binds the key certified by certificate to scheduleName. It
// fails without changing the store when the schedule is missing or the
// member's identity is already registered.
func (g *GroupManager) AddMember(ctx context.Context, scheduleName string, certificate *ndn.Data) (err error) {
	keyName := keychain.KeyNameOf(certificate.Name)
	logger := g.loggerWith(ctx, "AddMember", "schedule", scheduleName, "key", keyName.String())
	defer func() { logOutcome(ctx, logger, err, "member added") }()

	if _, perr := encryption.ParseRsaPublicKey(certificate.Content); perr != nil {
		err = fmt.Errorf("%w %s: %v", ErrInvalidCertificate, certificate.Name, perr)
		return
	}
	if err = g.db.AddMember(ctx, scheduleName, keyName, certificate.Content); err != nil {
		err = fmt.Errorf("groupmanager: add member %s: %w", keyName, err)
	}
	return
}

// UpdateMemberSchedule moves a member to another schedule.
func (g *GroupManager) UpdateMemberSchedule(ctx context.Context, identity ndn.Name, scheduleName string) (err error) {
	logger := g.loggerWith(ctx, "UpdateMemberSchedule", "member", identity.String(), "schedule", scheduleName)
	defer func() { logOutcome(ctx, logger, err, "member moved") }()

	if err = g.db.UpdateMemberSchedule(ctx, identity, scheduleName); err != nil {
		err = fmt.Errorf("groupmanager: move member %s: %w", identity, err)
	}
	return
}

// RemoveMember revokes a member. Removing an unknown member is a no-op.
func (g *GroupManager) RemoveMember(ctx context.Context, identity ndn.Name) (err error) {
	logger := g.loggerWith(ctx, "RemoveMember", "member", identity.String())
	defer func() { logOutcome(ctx, logger, err, "member removed") }()

	if err = g.db.DeleteMember(ctx, identity); err != nil {
		err = fmt.Errorf("groupmanager: remove member %s: %w", identity, err)
	}
	return
}

// GetMemberSchedule returns the schedule name a member is bound to.
func (g *GroupManager) GetMemberSchedule(ctx context.Context, identity ndn.Name) (string, error) {
	name, err := g.db.GetMemberSchedule(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("groupmanager: member %s: %w", identity, err)
	}
	return name, nil
}

// ListMembers returns every member identity in canonical order.
func (g *GroupManager) ListMembers(ctx context.Context) ([]ndn.Name, error) {
	identities, err := g.db.ListAllMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("groupmanager: list members: %w", err)
	}
	return identities, nil
}

// CleanEKeys drops every stored group key pair so the next GetGroupKey
// generates fresh ones.
func (g *GroupManager) CleanEKeys(ctx context.Context) (err error) {
	logger := g.loggerWith(ctx, "CleanEKeys")
	defer func() { logOutcome(ctx, logger, err, "group key pairs cleaned") }()

	if err = g.db.CleanEKeys(ctx); err != nil {
		err = fmt.Errorf("groupmanager: clean e-keys: %w", err)
	}
	return
}
