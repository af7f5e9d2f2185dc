package face

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/testfixtures"
)

type outcome struct {
	data    *ndn.Data
	timeout bool
	nack    NackReason
}

func express(t *testing.T, m *Memory, interest *ndn.Interest) *outcome {
	t.Helper()
	got := &outcome{}
	_, err := m.ExpressInterest(interest,
		func(_ *ndn.Interest, data *ndn.Data) { got.data = data },
		func(*ndn.Interest) { got.timeout = true },
		func(_ *ndn.Interest, reason NackReason) { got.nack = reason },
	)
	require.NoError(t, err)
	return got
}

func publish(m *Memory, names ...string) {
	for _, name := range names {
		m.Put(ndn.NewData(ndn.MustParseName(name)))
	}
}

func TestMemory_CallbacksRunOnlyInProcessEvents(t *testing.T) {
	m := NewMemory()
	publish(m, "/a/b/1")

	got := express(t, m, ndn.NewInterest(ndn.MustParseName("/a/b")))
	assert.Nil(t, got.data)

	assert.Equal(t, 1, m.ProcessEvents())
	require.NotNil(t, got.data)
	assert.Equal(t, "/a/b/1", got.data.Name.String())
	assert.Equal(t, 0, m.ProcessEvents())
}

func TestMemory_ChildSelectorAndExclude(t *testing.T) {
	m := NewMemory()
	publish(m, "/k/E-KEY/20150825T000000/x", "/k/E-KEY/20150825T080000/x", "/k/E-KEY/20150825T160000/x")

	interest := ndn.NewInterest(ndn.MustParseName("/k/E-KEY"))
	interest.ChildSelector = ndn.ChildSelectorRightmost
	interest.Exclude.ExcludeAfter(ndn.NewComponent("20150825T090000"))
	got := express(t, m, interest)

	leftmost := express(t, m, ndn.NewInterest(ndn.MustParseName("/k/E-KEY")))

	m.ProcessEvents()
	require.NotNil(t, got.data)
	assert.Equal(t, "/k/E-KEY/20150825T080000/x", got.data.Name.String())
	require.NotNil(t, leftmost.data)
	assert.Equal(t, "/k/E-KEY/20150825T000000/x", leftmost.data.Name.String())
}

func TestMemory_TimeoutsAndNacks(t *testing.T) {
	m := NewMemory()
	publish(m, "/a/1")
	m.DropNext(ndn.MustParseName("/a"), 1)
	m.NackNext(ndn.MustParseName("/a"), 1, NackNoRoute)

	dropped := express(t, m, ndn.NewInterest(ndn.MustParseName("/a")))
	nacked := express(t, m, ndn.NewInterest(ndn.MustParseName("/a")))
	served := express(t, m, ndn.NewInterest(ndn.MustParseName("/a")))
	missing := express(t, m, ndn.NewInterest(ndn.MustParseName("/b")))

	assert.Equal(t, 4, m.ProcessEvents())
	assert.True(t, dropped.timeout)
	assert.Equal(t, NackNoRoute, nacked.nack)
	assert.NotNil(t, served.data)
	assert.True(t, missing.timeout)
	assert.Len(t, m.Expressed(), 4)
}

func TestMemory_CallbackMayExpressMore(t *testing.T) {
	m := NewMemory()
	publish(m, "/a/1", "/b/1")

	var second *ndn.Data
	_, err := m.ExpressInterest(ndn.NewInterest(ndn.MustParseName("/a")), func(*ndn.Interest, *ndn.Data) {
		_, err := m.ExpressInterest(ndn.NewInterest(ndn.MustParseName("/b")), func(_ *ndn.Interest, d *ndn.Data) {
			second = d
		}, nil, nil)
		require.NoError(t, err)
	}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, m.ProcessEvents())
	require.NotNil(t, second)
	assert.Equal(t, 1, m.Remove(ndn.MustParseName("/b")))

	m.Close()
	_, err = m.ExpressInterest(ndn.NewInterest(ndn.MustParseName("/a")), nil, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemory_MustBeFreshSkipsStaleData(t *testing.T) {
	clock := testfixtures.NewClockAt("20150825T080000")
	m := NewMemory(WithClock(clock.NowFunc()))

	key := ndn.NewData(ndn.MustParseName("/k/E-KEY/20150825T080000/20150825T100000"))
	key.MetaInfo.FreshnessPeriod = time.Hour
	m.Put(key)
	publish(m, "/k/E-KEY/20150825T000000/20150825T080000")

	fresh := func() *ndn.Interest {
		interest := ndn.NewInterest(ndn.MustParseName("/k/E-KEY"))
		interest.ChildSelector = ndn.ChildSelectorRightmost
		interest.MustBeFresh = true
		return interest
	}

	beforeExpiry := express(t, m, fresh())
	m.ProcessEvents()
	require.NotNil(t, beforeExpiry.data)
	assert.Equal(t, key.Name.String(), beforeExpiry.data.Name.String())

	clock.Advance(time.Hour)
	afterExpiry := express(t, m, fresh())
	anyAge := express(t, m, ndn.NewInterest(ndn.MustParseName("/k/E-KEY/20150825T080000")))
	m.ProcessEvents()
	require.NotNil(t, afterExpiry.data)
	assert.Equal(t, "/k/E-KEY/20150825T000000/20150825T080000", afterExpiry.data.Name.String(), "data without freshness never goes stale")
	require.NotNil(t, anyAge.data)
	assert.Equal(t, key.Name.String(), anyAge.data.Name.String())

	m.Put(key)
	republished := express(t, m, fresh())
	m.ProcessEvents()
	require.NotNil(t, republished.data)
	assert.Equal(t, key.Name.String(), republished.data.Name.String())
}
