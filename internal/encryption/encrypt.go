package encryption

import (
	"crypto/rand"
	"fmt"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
)

// NonceComponent names the one-time key inside a HybridContent.
const NonceComponent = "nonce"

// EncryptSymmetric encrypts plaintext with AES-CBC under a fresh random IV.
func EncryptSymmetric(keyName ndn.Name, key, plaintext []byte) (EncryptedContent, error) {
	iv := make([]byte, AesKeySize)
	if _, err := rand.Read(iv); err != nil {
		return EncryptedContent{}, fmt.Errorf("encryption: generate iv: %w", err)
	}
	payload, err := AesEncrypt(AlgorithmAesCbc, key, iv, plaintext)
	if err != nil {
		return EncryptedContent{}, err
	}
	return EncryptedContent{
		Algorithm:     AlgorithmAesCbc,
		KeyLocator:    keyName,
		Payload:       payload,
		InitialVector: iv,
	}, nil
}

// EncryptAsymmetric encrypts plaintext with RSA-OAEP. plaintext must fit in
// a single RSA block.
func EncryptAsymmetric(keyName ndn.Name, publicKeyDer, plaintext []byte) (EncryptedContent, error) {
	payload, err := RsaEncrypt(AlgorithmRsaOaep, publicKeyDer, plaintext)
	if err != nil {
		return EncryptedContent{}, err
	}
	return EncryptedContent{
		Algorithm:  AlgorithmRsaOaep,
		KeyLocator: keyName,
		Payload:    payload,
	}, nil
}

// EncryptHybrid encrypts plaintext of any size for the holder of the
// private half of publicKeyDer: the payload under a random AES nonce, and
// the nonce under the public key.
func EncryptHybrid(keyName ndn.Name, publicKeyDer, plaintext []byte) (HybridContent, error) {
	nonce, err := GenerateAesKey(AesKeySize)
	if err != nil {
		return HybridContent{}, err
	}
	payload, err := EncryptSymmetric(keyName.AppendString(NonceComponent), nonce, plaintext)
	if err != nil {
		return HybridContent{}, err
	}
	wrapped, err := EncryptAsymmetric(keyName, publicKeyDer, nonce)
	if err != nil {
		return HybridContent{}, err
	}
	return HybridContent{Nonce: wrapped, Payload: payload}, nil
}

// Decrypt opens c with key, which is raw AES bytes for symmetric algorithms
// and a PKCS#8 private key for RSA.
func Decrypt(c EncryptedContent, key []byte) ([]byte, error) {
	switch c.Algorithm {
	case AlgorithmAesCbc, AlgorithmAesEcb:
		return AesDecrypt(c.Algorithm, key, c.InitialVector, c.Payload)
	case AlgorithmRsaOaep, AlgorithmRsaPkcs:
		return RsaDecrypt(c.Algorithm, key, c.Payload)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, c.Algorithm)
}

// DecryptHybrid recovers the nonce with privateKeyDer and opens the payload
// with it.
func DecryptHybrid(h HybridContent, privateKeyDer []byte) ([]byte, error) {
	nonce, err := Decrypt(h.Nonce, privateKeyDer)
	if err != nil {
		return nil, fmt.Errorf("open nonce: %w", err)
	}
	return Decrypt(h.Payload, nonce)
}
