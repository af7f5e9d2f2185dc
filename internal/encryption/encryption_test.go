package encryption

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
)

// 1024-bit keys keep the suite fast; production paths use DefaultRsaKeySize.
func newKeyPair(t *testing.T) (private, public []byte) {
	t.Helper()
	private, err := GenerateRsaKey(1024)
	require.NoError(t, err)
	public, err = DeriveRsaPublicKey(private)
	require.NoError(t, err)
	return private, public
}

func TestEncryptedContent_EncodeDecode(t *testing.T) {
	content := EncryptedContent{
		Algorithm:     AlgorithmAesCbc,
		KeyLocator:    ndn.MustParseName("/prefix/SAMPLE/type/C-KEY/20150825T080000"),
		Payload:       []byte{1, 2, 3, 4},
		InitialVector: bytes.Repeat([]byte{9}, AesKeySize),
	}
	wire, err := content.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEncryptedContent(wire)
	require.NoError(t, err)
	assert.Equal(t, content.Algorithm, decoded.Algorithm)
	assert.True(t, content.KeyLocator.Equal(decoded.KeyLocator))
	assert.Equal(t, content.Payload, decoded.Payload)
	assert.Equal(t, content.InitialVector, decoded.InitialVector)

	_, err = DecodeEncryptedContent(wire[:len(wire)-2])
	assert.ErrorIs(t, err, ErrDecoding)
	_, err = DecodeEncryptedContent(append(wire, wire...))
	assert.ErrorIs(t, err, ErrDecoding)
}

func TestAes_RoundTripAndPadding(t *testing.T) {
	key, err := GenerateAesKey(AesKeySize)
	require.NoError(t, err)
	iv := bytes.Repeat([]byte{7}, AesKeySize)

	for _, size := range []int{0, 1, 15, 16, 17, 100} {
		plaintext := bytes.Repeat([]byte{0xab}, size)
		for _, algorithm := range []Algorithm{AlgorithmAesCbc, AlgorithmAesEcb} {
			ciphertext, err := AesEncrypt(algorithm, key, iv, plaintext)
			require.NoError(t, err)
			assert.Zero(t, len(ciphertext)%AesKeySize)
			assert.Greater(t, len(ciphertext), size)

			decrypted, err := AesDecrypt(algorithm, key, iv, ciphertext)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		}
	}

	_, err = AesDecrypt(AlgorithmAesCbc, key, iv, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrDecryption)
	_, err = AesEncrypt(AlgorithmRsaOaep, key, iv, []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	_, err = GenerateAesKey(5)
	assert.Error(t, err)
}

func TestEncryptSymmetric_FreshIV(t *testing.T) {
	key, err := GenerateAesKey(AesKeySize)
	require.NoError(t, err)
	name := ndn.MustParseName("/c-key")

	first, err := EncryptSymmetric(name, key, []byte("same"))
	require.NoError(t, err)
	second, err := EncryptSymmetric(name, key, []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, first.InitialVector, second.InitialVector)

	plaintext, err := Decrypt(first, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("same"), plaintext)
}

func TestRsa_EncryptDecrypt(t *testing.T) {
	private, public := newKeyPair(t)
	other, _ := newKeyPair(t)

	content, err := EncryptAsymmetric(ndn.MustParseName("/e-key"), public, []byte("content key"))
	require.NoError(t, err)
	assert.Equal(t, AlgorithmRsaOaep, content.Algorithm)

	plaintext, err := Decrypt(content, private)
	require.NoError(t, err)
	assert.Equal(t, []byte("content key"), plaintext)

	_, err = Decrypt(content, other)
	assert.ErrorIs(t, err, ErrDecryption)

	pkcs, err := RsaEncrypt(AlgorithmRsaPkcs, public, []byte("legacy"))
	require.NoError(t, err)
	plaintext, err = RsaDecrypt(AlgorithmRsaPkcs, private, pkcs)
	require.NoError(t, err)
	assert.Equal(t, []byte("legacy"), plaintext)
}

func TestHybrid_LargePayload(t *testing.T) {
	private, public := newKeyPair(t)
	keyName := ndn.MustParseName("/member/KEY/1")
	secret, err := GenerateRsaKey(1024)
	require.NoError(t, err)

	hybrid, err := EncryptHybrid(keyName, public, secret)
	require.NoError(t, err)
	assert.True(t, keyName.Equal(hybrid.Nonce.KeyLocator))
	assert.True(t, keyName.AppendString(NonceComponent).Equal(hybrid.Payload.KeyLocator))

	wire, err := hybrid.Encode()
	require.NoError(t, err)
	decoded, err := DecodeHybridContent(wire)
	require.NoError(t, err)

	plaintext, err := DecryptHybrid(decoded, private)
	require.NoError(t, err)
	assert.Equal(t, secret, plaintext)

	_, err = DecodeHybridContent(wire[:len(wire)/2])
	assert.ErrorIs(t, err, ErrDecoding)
}
