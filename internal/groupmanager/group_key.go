package groupmanager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/encryption"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence"
	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
)

// CalculateInterval returns the window around t during which the set of
// members with access stays the same, and those members keyed by key name.
// When no schedule grants access at t the interval is invalid and the map
// is empty.
func (g *GroupManager) CalculateInterval(ctx context.Context, t time.Time) (schedule.Interval, map[string]persistence.Member, error) {
	members := make(map[string]persistence.Member)

	names, err := g.db.ListAllScheduleNames(ctx)
	if err != nil {
		return schedule.Interval{}, members, fmt.Errorf("groupmanager: list schedules: %w", err)
	}

	var positive, negative schedule.Interval
	for _, name := range names {
		s, err := g.db.GetSchedule(ctx, name)
		if err != nil {
			return schedule.Interval{}, members, fmt.Errorf("groupmanager: get schedule %q: %w", name, err)
		}
		result := s.GetCoveringInterval(t)
		if !result.IsPositive {
			negative = narrow(negative, result.Interval)
			continue
		}

		positive = narrow(positive, result.Interval)
		scheduleMembers, err := g.db.GetScheduleMembers(ctx, name)
		if err != nil {
			return schedule.Interval{}, members, fmt.Errorf("groupmanager: members of %q: %w", name, err)
		}
		for _, m := range scheduleMembers {
			members[m.KeyName.String()] = m
		}
	}

	if !positive.IsValid() {
		return schedule.Interval{}, make(map[string]persistence.Member), nil
	}
	if negative.IsValid() {
		positive = positive.Intersect(negative)
	}
	return positive, members, nil
}

func narrow(acc, next schedule.Interval) schedule.Interval {
	if !acc.IsValid() {
		return next
	}
	return acc.Intersect(next)
}

// GetGroupKey returns the E-Key Data for the interval around t followed by
// one D-Key Data per member, ordered by member key name. An empty slice
// means nobody has access at t.
//
// The key pair minted for an interval is stored under its E-Key name and
// reused unless needRegenerate is set.
func (g *GroupManager) GetGroupKey(ctx context.Context, t time.Time, needRegenerate bool) (result []*ndn.Data, err error) {
	logger := g.loggerWith(ctx, "GetGroupKey", "time", schedule.ToIsoString(t))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to generate group key", "error", err, "error_kind", persistence.ErrorKind(err))
			return
		}
		if len(result) == 0 {
			logger.InfoContext(ctx, "no member has access")
			return
		}
		logger.InfoContext(ctx, "group key generated", "e_key", result[0].Name.String(), "d_keys", len(result)-1)
	}()

	interval, members, err := g.CalculateInterval(ctx, t)
	if err != nil {
		return nil, err
	}
	if !interval.IsValid() || interval.IsEmpty() {
		return nil, nil
	}

	startIso := schedule.ToIsoString(interval.StartTime())
	endIso := schedule.ToIsoString(interval.EndTime())

	pair, err := g.keyPair(ctx, g.eKeyName(startIso, endIso), needRegenerate)
	if err != nil {
		return nil, err
	}

	eKey, err := g.createEKeyData(startIso, endIso, pair.PublicKey)
	if err != nil {
		return nil, err
	}
	result = append(result, eKey)

	sorted := make([]persistence.Member, 0, len(members))
	for _, m := range members {
		sorted = append(sorted, m)
	}
	slices.SortFunc(sorted, func(a, b persistence.Member) int {
		return a.KeyName.Compare(b.KeyName)
	})
	for _, m := range sorted {
		dKey, err := g.createDKeyData(startIso, endIso, m.KeyName, pair.PrivateKey, m.PublicKey)
		if err != nil {
			return nil, err
		}
		result = append(result, dKey)
	}

	g.metrics.ObserveGroupKey(len(sorted))
	return result, nil
}

func (g *GroupManager) keyPair(ctx context.Context, eKeyName ndn.Name, needRegenerate bool) (persistence.KeyPair, error) {
	exists, err := g.db.HasEKey(ctx, eKeyName)
	if err != nil {
		return persistence.KeyPair{}, fmt.Errorf("groupmanager: lookup %s: %w", eKeyName, err)
	}
	if exists && !needRegenerate {
		pair, err := g.db.GetEKey(ctx, eKeyName)
		if err == nil {
			return pair, nil
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			return persistence.KeyPair{}, fmt.Errorf("groupmanager: load %s: %w", eKeyName, err)
		}
	}

	privateKey, err := encryption.GenerateRsaKey(g.keySize)
	if err != nil {
		return persistence.KeyPair{}, err
	}
	publicKey, err := encryption.DeriveRsaPublicKey(privateKey)
	if err != nil {
		return persistence.KeyPair{}, err
	}
	pair := persistence.KeyPair{PublicKey: publicKey, PrivateKey: privateKey}

	if exists {
		if err := g.db.DeleteEKey(ctx, eKeyName); err != nil {
			return persistence.KeyPair{}, fmt.Errorf("groupmanager: replace %s: %w", eKeyName, err)
		}
	}
	if err := g.db.AddEKey(ctx, eKeyName, pair); err != nil {
		return persistence.KeyPair{}, fmt.Errorf("groupmanager: store %s: %w", eKeyName, err)
	}
	return pair, nil
}

func (g *GroupManager) eKeyName(startIso, endIso string) ndn.Name {
	return g.namespace.AppendString(encryption.NameEKey, startIso, endIso)
}

func (g *GroupManager) dKeyName(startIso, endIso string) ndn.Name {
	return g.namespace.AppendString(encryption.NameDKey, startIso, endIso)
}

// createEKeyData publishes the group public key for [startIso, endIso).
func (g *GroupManager) createEKeyData(startIso, endIso string, publicKey []byte) (*ndn.Data, error) {
	data := ndn.NewData(g.eKeyName(startIso, endIso))
	data.MetaInfo = ndn.MetaInfo{ContentType: ndn.ContentTypeKey, FreshnessPeriod: g.freshness}
	data.Content = append([]byte(nil), publicKey...)
	if err := g.signer.Sign(data, g.certName); err != nil {
		return nil, fmt.Errorf("groupmanager: sign %s: %w", data.Name, err)
	}
	return data, nil
}

// createDKeyData wraps the group private key for one member: the key bits
// under a random AES nonce, the nonce under the member's public key.
func (g *GroupManager) createDKeyData(startIso, endIso string, memberKeyName ndn.Name, privateKey, memberPublicKey []byte) (*ndn.Data, error) {
	name := memberKeyName.AppendString(encryption.NameEncryptedBy).AppendName(g.dKeyName(startIso, endIso))

	content, err := encryption.EncryptHybrid(memberKeyName, memberPublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("groupmanager: encrypt d-key for %s: %w", memberKeyName, err)
	}
	wire, err := content.Encode()
	if err != nil {
		return nil, fmt.Errorf("groupmanager: encode d-key for %s: %w", memberKeyName, err)
	}

	data := ndn.NewData(name)
	data.Content = wire
	if err := g.signer.Sign(data, g.certName); err != nil {
		return nil, fmt.Errorf("groupmanager: sign %s: %w", name, err)
	}
	return data, nil
}
