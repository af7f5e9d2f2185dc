package groupmanager_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/named-data/ndn-cpp-sub006/internal/encryption"
	"github.com/named-data/ndn-cpp-sub006/internal/groupmanager"
	"github.com/named-data/ndn-cpp-sub006/internal/keychain"
	"github.com/named-data/ndn-cpp-sub006/internal/metrics"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence"
	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
	"github.com/named-data/ndn-cpp-sub006/internal/testfixtures"
)

type env struct {
	kc      *keychain.KeyChain
	gm      *groupmanager.GroupManager
	gmCert  *ndn.Data
	db      persistence.GroupManagerDb
	members map[string]*ndn.Data
	reg     *prometheus.Registry
}

func newEnv(t *testing.T, db persistence.GroupManagerDb) *env {
	t.Helper()

	kc := keychain.New(keychain.WithKeySize(1024))
	gmCert, err := kc.CreateIdentity(ndn.MustParseName("/Prefix/manager"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	gm := groupmanager.New(
		ndn.MustParseName("/Prefix"), ndn.MustParseName("/location"),
		db, kc, gmCert.Name,
		groupmanager.WithKeySize(1024),
		groupmanager.WithMetrics(metrics.New(reg)),
	)

	e := &env{kc: kc, gm: gm, gmCert: gmCert, db: db, members: make(map[string]*ndn.Data), reg: reg}
	for _, name := range []string{"alice", "bob", "carol"} {
		cert, err := kc.CreateIdentity(ndn.MustParseName("/member").AppendString(name))
		require.NoError(t, err)
		e.members[name] = cert
	}
	return e
}

func (e *env) privateKey(t *testing.T, member string) []byte {
	t.Helper()
	der, err := e.kc.PrivateKey(keychain.KeyNameOf(e.members[member].Name))
	require.NoError(t, err)
	return der
}

func nightSchedule() *schedule.Schedule {
	return schedule.New().AddWhiteInterval(schedule.MustRepetitiveInterval(
		testfixtures.Iso("20150825T000000"), testfixtures.Iso("20150825T000000"), 9, 12, 0, schedule.RepeatNone))
}

func TestGroupManager_AddMemberIntegrity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, persistence.NewMemoryStore())
	alice := keychain.IdentityOf(keychain.KeyNameOf(e.members["alice"].Name))

	err := e.gm.AddMember(ctx, "work", e.members["alice"])
	assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
	assert.True(t, persistence.IsIntegrityViolation(err))
	found, err := e.db.HasMember(ctx, alice)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, e.gm.AddSchedule(ctx, "work", testfixtures.FixtureSchedule()))
	require.NoError(t, e.gm.AddSchedule(ctx, "night", nightSchedule()))
	require.NoError(t, e.gm.AddMember(ctx, "work", e.members["alice"]))

	err = e.gm.AddMember(ctx, "night", e.members["alice"])
	assert.ErrorIs(t, err, persistence.ErrDuplicate)
	scheduleName, err := e.gm.GetMemberSchedule(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "work", scheduleName)

	bogus := ndn.NewData(ndn.MustParseName("/member/eve/KEY/1/self/1"))
	bogus.Content = []byte("not a key")
	assert.ErrorIs(t, e.gm.AddMember(ctx, "work", bogus), groupmanager.ErrInvalidCertificate)

	require.NoError(t, e.gm.UpdateMemberSchedule(ctx, alice, "night"))
	scheduleName, err = e.gm.GetMemberSchedule(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "night", scheduleName)

	require.NoError(t, e.gm.RemoveMember(ctx, alice))
	identities, err := e.gm.ListMembers(ctx)
	require.NoError(t, err)
	assert.Empty(t, identities)
}

func TestGroupManager_ScheduleLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testfixtures.NewSQLiteStore(t))

	require.NoError(t, e.gm.AddSchedule(ctx, "work", testfixtures.FixtureSchedule()))
	assert.ErrorIs(t, e.gm.AddSchedule(ctx, "work", nightSchedule()), persistence.ErrDuplicate)
	require.NoError(t, e.gm.AddMember(ctx, "work", e.members["bob"]))

	require.NoError(t, e.gm.UpdateSchedule(ctx, "work", nightSchedule()))
	got, err := e.gm.GetSchedule(ctx, "work")
	require.NoError(t, err)
	assert.True(t, nightSchedule().Equal(got))

	require.NoError(t, e.gm.RenameSchedule(ctx, "work", "evening"))
	names, err := e.gm.ListScheduleNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"evening"}, names)

	require.NoError(t, e.gm.DeleteSchedule(ctx, "evening"))
	identities, err := e.gm.ListMembers(ctx)
	require.NoError(t, err)
	assert.Empty(t, identities)
}

func TestGroupManager_CalculateInterval(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, persistence.NewMemoryStore())
	require.NoError(t, e.gm.AddSchedule(ctx, "work", testfixtures.FixtureSchedule()))
	require.NoError(t, e.gm.AddSchedule(ctx, "night", nightSchedule()))
	require.NoError(t, e.gm.AddMember(ctx, "work", e.members["alice"]))
	require.NoError(t, e.gm.AddMember(ctx, "work", e.members["bob"]))
	require.NoError(t, e.gm.AddMember(ctx, "night", e.members["carol"]))

	cases := []struct {
		at         string
		start, end string
		members    []string
	}{
		{at: "20150825T063000", start: "20150825T040000", end: "20150825T090000", members: []string{"alice", "bob"}},
		{at: "20150825T093000", start: "20150825T090000", end: "20150825T100000", members: []string{"alice", "bob", "carol"}},
	}
	for _, tc := range cases {
		t.Run(tc.at, func(t *testing.T) {
			interval, members, err := e.gm.CalculateInterval(ctx, testfixtures.Iso(tc.at))
			require.NoError(t, err)
			require.True(t, interval.IsValid())
			assert.Equal(t, testfixtures.Iso(tc.start), interval.StartTime(), interval.String())
			assert.Equal(t, testfixtures.Iso(tc.end), interval.EndTime(), interval.String())
			assert.True(t, interval.Covers(testfixtures.Iso(tc.at)))

			require.Len(t, members, len(tc.members))
			for _, name := range tc.members {
				keyName := keychain.KeyNameOf(e.members[name].Name)
				member, ok := members[keyName.String()]
				require.True(t, ok, name)
				assert.Equal(t, e.members[name].Content, member.PublicKey)
			}
		})
	}

	t.Run("nobody has access", func(t *testing.T) {
		interval, members, err := e.gm.CalculateInterval(ctx, testfixtures.Iso("20150827T073000"))
		require.NoError(t, err)
		assert.False(t, interval.IsValid())
		assert.Empty(t, members)

		keys, err := e.gm.GetGroupKey(ctx, testfixtures.Iso("20150827T073000"), true)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}

func TestGroupManager_GetGroupKey(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, persistence.NewMemoryStore())
	require.NoError(t, e.gm.AddSchedule(ctx, "work", testfixtures.FixtureSchedule()))
	require.NoError(t, e.gm.AddMember(ctx, "work", e.members["bob"]))
	require.NoError(t, e.gm.AddMember(ctx, "work", e.members["alice"]))

	at := testfixtures.Iso("20150825T063000")
	result, err := e.gm.GetGroupKey(ctx, at, false)
	require.NoError(t, err)
	require.Len(t, result, 3)

	eKey := result[0]
	assert.Equal(t, "/Prefix/READ/location/E-KEY/20150825T040000/20150825T100000", eKey.Name.String())
	assert.Equal(t, ndn.ContentTypeKey, eKey.MetaInfo.ContentType)
	assert.Equal(t, groupmanager.DefaultFreshness, eKey.MetaInfo.FreshnessPeriod)
	_, err = encryption.ParseRsaPublicKey(eKey.Content)
	require.NoError(t, err)

	dKeyName := ndn.MustParseName("/Prefix/READ/location/D-KEY/20150825T040000/20150825T100000")
	for i, member := range []string{"bob", "alice"} {
		dKey := result[i+1]
		keyName := keychain.KeyNameOf(e.members[member].Name)
		assert.True(t, keyName.AppendString("ENCRYPTED-BY").AppendName(dKeyName).Equal(dKey.Name), dKey.Name.String())

		content, err := encryption.DecodeHybridContent(dKey.Content)
		require.NoError(t, err)
		assert.True(t, keyName.Equal(content.Nonce.KeyLocator))

		groupPrivate, err := encryption.DecryptHybrid(content, e.privateKey(t, member))
		require.NoError(t, err)
		groupPublic, err := encryption.DeriveRsaPublicKey(groupPrivate)
		require.NoError(t, err)
		assert.Equal(t, eKey.Content, groupPublic, "D-Key must open what the E-Key seals")
	}

	for _, data := range result {
		require.NoError(t, keychain.Verify(data, e.gmCert.Content))
	}

	_, err = encryption.DecryptHybrid(mustHybrid(t, result[2].Content), e.privateKey(t, "bob"))
	assert.Error(t, err, "bob cannot open alice's D-Key")

	count, err := testutil.GatherAndCount(e.reg, "gep_group_keys_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGroupManager_GetGroupKeyReusesStoredPair(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, persistence.NewMemoryStore())
	require.NoError(t, e.gm.AddSchedule(ctx, "work", testfixtures.FixtureSchedule()))
	require.NoError(t, e.gm.AddMember(ctx, "work", e.members["alice"]))

	at := testfixtures.Iso("20150825T063000")
	first, err := e.gm.GetGroupKey(ctx, at, false)
	require.NoError(t, err)
	again, err := e.gm.GetGroupKey(ctx, at.Add(15*time.Minute), false)
	require.NoError(t, err)
	assert.Equal(t, first[0].Content, again[0].Content)

	regenerated, err := e.gm.GetGroupKey(ctx, at, true)
	require.NoError(t, err)
	assert.NotEqual(t, first[0].Content, regenerated[0].Content)

	found, err := e.db.HasEKey(ctx, first[0].Name)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, e.gm.CleanEKeys(ctx))
	found, err = e.db.HasEKey(ctx, first[0].Name)
	require.NoError(t, err)
	assert.False(t, found)
}

func mustHybrid(t *testing.T, wire []byte) encryption.HybridContent {
	t.Helper()
	content, err := encryption.DecodeHybridContent(wire)
	require.NoError(t, err)
	return content
}
