package producer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/named-data/ndn-cpp-sub006/internal/encryption"
	"github.com/named-data/ndn-cpp-sub006/internal/face"
	"github.com/named-data/ndn-cpp-sub006/internal/keycache"
	"github.com/named-data/ndn-cpp-sub006/internal/keychain"
	"github.com/named-data/ndn-cpp-sub006/internal/metrics"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence"
	"github.com/named-data/ndn-cpp-sub006/internal/producer"
	"github.com/named-data/ndn-cpp-sub006/internal/testfixtures"
)

var prefix = ndn.MustParseName("/Prefix")

type env struct {
	kc   *keychain.KeyChain
	cert *ndn.Data
	face *face.Memory
	db   persistence.ProducerDb
	rec  *countingRecorder
}

func newEnv(t *testing.T, db persistence.ProducerDb) *env {
	t.Helper()
	kc := keychain.New(keychain.WithKeySize(1024))
	cert, err := kc.CreateIdentity(ndn.MustParseName("/Prefix/producer"))
	require.NoError(t, err)
	return &env{kc: kc, cert: cert, face: face.NewMemory(), db: db, rec: newCountingRecorder()}
}

func (e *env) producer(dataType string, opts ...producer.Option) *producer.Producer {
	opts = append([]producer.Option{producer.WithMetrics(e.rec)}, opts...)
	return producer.New(prefix, ndn.MustParseName(dataType), e.face, e.kc, e.cert.Name, e.db, opts...)
}

// publishEKey puts an E-Key for [start, end) under domain and returns the
// group private key.
func (e *env) publishEKey(t *testing.T, domain, start, end string) []byte {
	t.Helper()
	private, err := encryption.GenerateRsaKey(1024)
	require.NoError(t, err)
	public, err := encryption.DeriveRsaPublicKey(private)
	require.NoError(t, err)

	data := ndn.NewData(ndn.MustParseName(domain).AppendString(start, end))
	data.MetaInfo.ContentType = ndn.ContentTypeKey
	data.Content = public
	e.face.Put(data)
	return private
}

type collector struct {
	mu     sync.Mutex
	calls  int
	keys   []*ndn.Data
	errors []encryption.ErrorCode
}

func (c *collector) onKeys(keys []*ndn.Data) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.keys = keys
}

func (c *collector) onError(code encryption.ErrorCode, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, code)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: make(map[string]int)}
}

func (r *countingRecorder) inc(key string) {
	r.mu.Lock()
	r.counts[key]++
	r.mu.Unlock()
}

func (r *countingRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func (r *countingRecorder) ObserveGroupKey(_ int)         {}
func (r *countingRecorder) IncContentKeys(outcome string) { r.inc("ckey:" + outcome) }
func (r *countingRecorder) IncEKeyFetch(outcome string)   { r.inc("fetch:" + outcome) }
func (r *countingRecorder) IncProduced()                  { r.inc("produced") }
func (r *countingRecorder) IncConsumed(outcome string)    { r.inc("consumed:" + outcome) }
func (r *countingRecorder) IncCacheHits(cache string)     { r.inc("hit:" + cache) }
func (r *countingRecorder) IncCacheMisses(cache string)   { r.inc("miss:" + cache) }

var _ metrics.Recorder = (*countingRecorder)(nil)

func TestProducer_Domains(t *testing.T) {
	e := newEnv(t, persistence.NewMemoryStore())
	p := e.producer("/a/b/c")

	var got []string
	for _, d := range p.Domains() {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{
		"/Prefix/READ/a/b/c/E-KEY",
		"/Prefix/READ/a/b/E-KEY",
		"/Prefix/READ/a/E-KEY",
	}, got)

	assert.True(t, testfixtures.Iso("20150825T010000").Equal(p.Bucket(testfixtures.Iso("20150825T015959"))))
	assert.Equal(t, "/Prefix/SAMPLE/a/b/c/C-KEY/20150825T010000", p.ContentKeyName(testfixtures.Iso("20150825T013000")).String())
}

func TestProducer_ContentKeyRequest(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, persistence.NewMemoryStore())
	p := e.producer("/a/b/c")

	groupKeys := map[string][]byte{
		"/Prefix/READ/a/b/c/E-KEY/20150825T000000/20150825T120000": e.publishEKey(t, "/Prefix/READ/a/b/c/E-KEY", "20150825T000000", "20150825T120000"),
		"/Prefix/READ/a/b/E-KEY/20150825T000000/20150825T120000":   e.publishEKey(t, "/Prefix/READ/a/b/E-KEY", "20150825T000000", "20150825T120000"),
		"/Prefix/READ/a/E-KEY/20150825T000000/20150825T120000":     e.publishEKey(t, "/Prefix/READ/a/E-KEY", "20150825T000000", "20150825T120000"),
	}

	var c collector
	name, err := p.CreateContentKey(ctx, testfixtures.Iso("20150825T013000"), c.onKeys, c.onError)
	require.NoError(t, err)
	assert.Equal(t, "/Prefix/SAMPLE/a/b/c/C-KEY/20150825T010000", name.String())
	assert.Equal(t, 0, c.calls, "callbacks only run while the face is pumped")

	e.face.ProcessEvents()
	require.Equal(t, 1, c.calls)
	require.Len(t, c.keys, 3)
	assert.Empty(t, c.errors)

	contentKey, err := e.db.GetContentKey(ctx, testfixtures.Iso("20150825T010000"))
	require.NoError(t, err)
	assert.Len(t, contentKey, encryption.AesKeySize)

	for _, data := range c.keys {
		require.True(t, name.AppendString("FOR").IsPrefixOf(data.Name), data.Name.String())
		eKeyName := data.Name.SubName(name.Size() + 1)
		private, ok := groupKeys[eKeyName.String()]
		require.True(t, ok, eKeyName.String())

		content, err := encryption.DecodeEncryptedContent(data.Content)
		require.NoError(t, err)
		assert.Equal(t, encryption.AlgorithmRsaOaep, content.Algorithm)
		assert.True(t, eKeyName.Equal(content.KeyLocator))

		opened, err := encryption.Decrypt(content, private)
		require.NoError(t, err)
		assert.Equal(t, contentKey, opened)
		require.NoError(t, keychain.Verify(data, e.cert.Content))
	}

	expressed := e.face.Expressed()
	require.Len(t, expressed, 3)
	for _, interest := range expressed {
		assert.Equal(t, ndn.ChildSelectorRightmost, interest.ChildSelector)
		assert.True(t, interest.Exclude.Matches(ndn.NewComponent("20150825T010001")))
		assert.False(t, interest.Exclude.Matches(ndn.NewComponent("20150825T010000")))
	}
	assert.Equal(t, 1, e.rec.count("ckey:created"))
}

func TestProducer_SameBucketReusesKey(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testfixtures.NewSQLiteStore(t))
	p := e.producer("/a", producer.WithCache(keycache.New(keycache.Config{SizeMB: 1}, nil)))
	e.publishEKey(t, "/Prefix/READ/a/E-KEY", "20150825T000000", "20150826T000000")

	var first, second collector
	name1, err := p.CreateContentKey(ctx, testfixtures.Iso("20150825T010500"), first.onKeys, first.onError)
	require.NoError(t, err)
	e.face.ProcessEvents()
	key1, err := e.db.GetContentKey(ctx, testfixtures.Iso("20150825T010000"))
	require.NoError(t, err)

	name2, err := p.CreateContentKey(ctx, testfixtures.Iso("20150825T015500"), second.onKeys, second.onError)
	require.NoError(t, err)
	e.face.ProcessEvents()
	key2, err := e.db.GetContentKey(ctx, testfixtures.Iso("20150825T010000"))
	require.NoError(t, err)

	assert.True(t, name1.Equal(name2))
	assert.Equal(t, key1, key2)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	require.Len(t, second.keys, 1)
	assert.Len(t, e.face.Expressed(), 1, "covering e-key is served from the cache")
	assert.Equal(t, 1, e.rec.count("ckey:created"))
	assert.Equal(t, 1, e.rec.count("ckey:reused"))

	restarted := e.producer("/a")
	_, err = restarted.CreateContentKey(ctx, testfixtures.Iso("20150825T013000"), nil, nil)
	require.NoError(t, err)
	key3, err := e.db.GetContentKey(ctx, testfixtures.Iso("20150825T010000"))
	require.NoError(t, err)
	assert.Equal(t, key1, key3)
}

func TestProducer_RefinementExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, persistence.NewMemoryStore())
	p := e.producer("/a/b", producer.WithRetries(2))

	e.publishEKey(t, "/Prefix/READ/a/b/E-KEY", "20150825T000000", "20150825T120000")
	e.publishEKey(t, "/Prefix/READ/a/E-KEY", "20150825T000000", "20150825T010000")

	var c collector
	_, err := p.CreateContentKey(ctx, testfixtures.Iso("20150825T013000"), c.onKeys, c.onError)
	require.NoError(t, err)
	e.face.ProcessEvents()

	require.Equal(t, 1, c.calls, "onEncryptedKeys fires once")
	require.Len(t, c.keys, 1)
	assert.True(t, ndn.MustParseName("/Prefix/READ/a/b/E-KEY").IsPrefixOf(c.keys[0].Name.SubName(p.ContentKeyName(testfixtures.Iso("20150825T010000")).Size()+1)))
	assert.Equal(t, []encryption.ErrorCode{encryption.ErrorCodeKeyRetrievalFailure}, c.errors)

	var shallow []*ndn.Interest
	for _, interest := range e.face.Expressed() {
		if interest.Name.String() == "/Prefix/READ/a/E-KEY" {
			shallow = append(shallow, interest)
		}
	}
	require.Len(t, shallow, 3, "initial interest plus two retries")
	assert.False(t, shallow[0].Exclude.Matches(ndn.NewComponent("20150825T000000")))
	assert.True(t, shallow[1].Exclude.Matches(ndn.NewComponent("20150825T000000")), "refined interest excludes the rejected e-key")
	assert.True(t, shallow[2].Exclude.Matches(ndn.NewComponent("20150825T000000")))

	assert.Equal(t, 1, e.rec.count("fetch:refined"))
	assert.Equal(t, 2, e.rec.count("fetch:timeout"))
	assert.Equal(t, 1, e.rec.count("fetch:dropped"))
}

func TestProducer_TimeoutsAndNacksConsumeRetries(t *testing.T) {
	ctx := context.Background()
	domain := ndn.MustParseName("/Prefix/READ/a/E-KEY")

	t.Run("recovers within budget", func(t *testing.T) {
		e := newEnv(t, persistence.NewMemoryStore())
		p := e.producer("/a", producer.WithRetries(3))
		e.publishEKey(t, domain.String(), "20150825T000000", "20150826T000000")
		e.face.DropNext(domain, 2)
		e.face.NackNext(domain, 1, face.NackCongestion)

		var c collector
		_, err := p.CreateContentKey(ctx, testfixtures.Iso("20150825T013000"), c.onKeys, c.onError)
		require.NoError(t, err)
		e.face.ProcessEvents()

		require.Equal(t, 1, c.calls)
		assert.Len(t, c.keys, 1)
		assert.Empty(t, c.errors)
		assert.Len(t, e.face.Expressed(), 4)
	})

	t.Run("drops domain when budget is spent", func(t *testing.T) {
		e := newEnv(t, persistence.NewMemoryStore())
		p := e.producer("/a", producer.WithRetries(0))
		e.publishEKey(t, domain.String(), "20150825T000000", "20150826T000000")
		e.face.NackNext(domain, 1, face.NackNoRoute)

		var c collector
		_, err := p.CreateContentKey(ctx, testfixtures.Iso("20150825T013000"), c.onKeys, c.onError)
		require.NoError(t, err)
		e.face.ProcessEvents()

		require.Equal(t, 1, c.calls)
		assert.Empty(t, c.keys)
		assert.Equal(t, []encryption.ErrorCode{encryption.ErrorCodeKeyRetrievalFailure}, c.errors)
		assert.Len(t, e.face.Expressed(), 1)
	})

	t.Run("malformed e-key is treated like a timeout", func(t *testing.T) {
		e := newEnv(t, persistence.NewMemoryStore())
		p := e.producer("/a", producer.WithRetries(1))
		bogus := ndn.NewData(domain.AppendString("20150825T000000", "20150826T000000"))
		bogus.Content = []byte("not a key")
		e.face.Put(bogus)

		var c collector
		_, err := p.CreateContentKey(ctx, testfixtures.Iso("20150825T013000"), c.onKeys, c.onError)
		require.NoError(t, err)
		e.face.ProcessEvents()

		require.Equal(t, 1, c.calls)
		assert.Empty(t, c.keys)
		assert.Len(t, e.face.Expressed(), 2)
		assert.Equal(t, 2, e.rec.count("fetch:malformed"))
	})
}

func TestProducer_Produce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, persistence.NewMemoryStore())
	p := e.producer("/a/b/c")

	var data ndn.Data
	err := p.Produce(ctx, &data, testfixtures.Iso("20150825T013000"), []byte("content"))
	assert.ErrorIs(t, err, producer.ErrNoContentKey)

	cKeyName, err := p.CreateContentKey(ctx, testfixtures.Iso("20150825T010000"), nil, nil)
	require.NoError(t, err)
	e.face.ProcessEvents()

	require.NoError(t, p.Produce(ctx, &data, testfixtures.Iso("20150825T013000"), []byte("content")))
	assert.Equal(t,
		"/Prefix/SAMPLE/a/b/c/20150825T010000/FOR/Prefix/SAMPLE/a/b/c/C-KEY/20150825T010000",
		data.Name.String())

	content, err := encryption.DecodeEncryptedContent(data.Content)
	require.NoError(t, err)
	assert.Equal(t, encryption.AlgorithmAesCbc, content.Algorithm)
	assert.True(t, cKeyName.Equal(content.KeyLocator))
	assert.Len(t, content.InitialVector, encryption.AesKeySize)

	key, err := e.db.GetContentKey(ctx, testfixtures.Iso("20150825T010000"))
	require.NoError(t, err)
	plaintext, err := encryption.Decrypt(content, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), plaintext)

	require.NoError(t, keychain.Verify(&data, e.cert.Content))
	assert.Equal(t, 1, e.rec.count("produced"))
}

func TestProducer_ConcurrentCreateSharesOneKey(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, persistence.NewMemoryStore())
	p := e.producer("/a", producer.WithRetries(0))

	const workers = 8
	names := make([]ndn.Name, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name, err := p.CreateContentKey(ctx, testfixtures.Iso("20150825T010000").Add(time.Duration(i)*time.Minute), nil, nil)
			assert.NoError(t, err)
			names[i] = name
		}(i)
	}
	wg.Wait()
	e.face.ProcessEvents()

	for _, name := range names {
		assert.True(t, names[0].Equal(name))
	}
	assert.Equal(t, 1, e.rec.count("ckey:created"))
	assert.Equal(t, workers-1, e.rec.count("ckey:reused"))
}
