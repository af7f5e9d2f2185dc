package keychain

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/testfixtures"
)

func TestCreateIdentity_CertificateLayout(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	ids := testfixtures.NewIDGenerator("k")
	kc := New(WithKeySize(1024), WithClock(clock.NowFunc()), WithKeyIDGenerator(ids.NextFunc()))

	certificate, err := kc.CreateIdentity(ndn.MustParseName("/member/alice"))
	require.NoError(t, err)

	wantName := "/member/alice/KEY/k-1/self/" + strconv.FormatInt(clock.Now().UnixMilli(), 10)
	assert.Equal(t, wantName, certificate.Name.String())
	assert.Equal(t, "/member/alice/KEY/k-1", KeyNameOf(certificate.Name).String())
	assert.Equal(t, "/member/alice", IdentityOf(KeyNameOf(certificate.Name)).String())
	assert.Equal(t, ndn.ContentTypeKey, certificate.MetaInfo.ContentType)
	require.NoError(t, Verify(certificate, certificate.Content))

	stored, err := kc.Certificate(certificate.Name)
	require.NoError(t, err)
	assert.Same(t, certificate, stored)
}

func TestSign_VerifyDetectsTampering(t *testing.T) {
	kc := New(WithKeySize(1024))
	certificate, err := kc.CreateIdentity(ndn.MustParseName("/producer"))
	require.NoError(t, err)

	data := ndn.NewData(ndn.MustParseName("/producer/SAMPLE/x"))
	data.Content = []byte("hello")
	require.NoError(t, kc.Sign(data, certificate.Name))
	assert.True(t, certificate.Name.Equal(data.SignatureInfo.KeyLocator))
	require.NoError(t, Verify(data, certificate.Content))

	data.Content = []byte("hellO")
	assert.ErrorIs(t, Verify(data, certificate.Content), ErrInvalidSignature)
}

func TestSign_UnknownCertificate(t *testing.T) {
	kc := New(WithKeySize(1024))
	data := ndn.NewData(ndn.MustParseName("/x"))
	err := kc.Sign(data, ndn.MustParseName("/nobody/KEY/1/self/1"))
	assert.ErrorIs(t, err, ErrUnknownKey)

	_, err = kc.PrivateKey(ndn.MustParseName("/nobody/KEY/1"))
	assert.ErrorIs(t, err, ErrUnknownKey)
}
