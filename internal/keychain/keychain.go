// Package keychain holds RSA identities, issues self-signed certificates and
// signs Data packets.
package keychain

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/named-data/ndn-cpp-sub006/internal/encryption"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
)

const (
	keyComponent  = "KEY"
	selfComponent = "self"

	// CertificateFreshness is the freshness period stamped on certificates.
	CertificateFreshness = time.Hour
)

var (
	// ErrUnknownKey is returned when no private key is held for a name.
	ErrUnknownKey = errors.New("keychain: unknown key")
	// ErrInvalidSignature is returned by Verify for a signature mismatch.
	ErrInvalidSignature = errors.New("keychain: invalid signature")
)

// Signer signs Data packets with the key behind a certificate.
type Signer interface {
	Sign(data *ndn.Data, certificateName ndn.Name) error
}

// KeyChain is an in-process store of RSA keys and their certificates. It is
// safe for concurrent use.
type KeyChain struct {
	mu           sync.RWMutex
	keys         map[string][]byte
	certificates map[string]*ndn.Data

	keySize  int
	newKeyID func() string
	now      func() time.Time
}

// Option configures a KeyChain.
type Option func(*KeyChain)

// WithKeySize sets the RSA modulus length of created identities.
func WithKeySize(bits int) Option {
	return func(k *KeyChain) {
		if bits > 0 {
			k.keySize = bits
		}
	}
}

// WithKeyIDGenerator overrides the random key id source.
func WithKeyIDGenerator(next func() string) Option {
	return func(k *KeyChain) {
		if next != nil {
			k.newKeyID = next
		}
	}
}

// WithClock overrides the time source used for certificate versions.
func WithClock(now func() time.Time) Option {
	return func(k *KeyChain) {
		if now != nil {
			k.now = now
		}
	}
}

// New returns an empty KeyChain.
func New(opts ...Option) *KeyChain {
	k := &KeyChain{
		keys:         make(map[string][]byte),
		certificates: make(map[string]*ndn.Data),
		keySize:      encryption.DefaultRsaKeySize,
		newKeyID:     uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// KeyNameOf returns the key name a certificate name belongs to:
// <identity>/KEY/<keyId>/<issuer>/<version> minus the last two components.
func KeyNameOf(certificateName ndn.Name) ndn.Name {
	return certificateName.Prefix(-2)
}

// IdentityOf returns the identity a key name belongs to.
func IdentityOf(keyName ndn.Name) ndn.Name {
	return keyName.Prefix(-2)
}

// CreateIdentity generates a key pair for identity and returns its
// self-signed certificate. The certificate content is the PKIX public key.
func (k *KeyChain) CreateIdentity(identity ndn.Name) (*ndn.Data, error) {
	privateKey, err := encryption.GenerateRsaKey(k.keySize)
	if err != nil {
		return nil, err
	}
	return k.ImportKey(identity.AppendString(keyComponent, k.newKeyID()), privateKey)
}

// ImportKey stores a PKCS#8 private key under keyName and returns a fresh
// self-signed certificate for it.
func (k *KeyChain) ImportKey(keyName ndn.Name, privateKeyDer []byte) (*ndn.Data, error) {
	publicKey, err := encryption.DeriveRsaPublicKey(privateKeyDer)
	if err != nil {
		return nil, err
	}
	version := strconv.FormatInt(k.now().UnixMilli(), 10)
	certificate := ndn.NewData(keyName.AppendString(selfComponent, version))
	certificate.MetaInfo = ndn.MetaInfo{ContentType: ndn.ContentTypeKey, FreshnessPeriod: CertificateFreshness}
	certificate.Content = publicKey

	k.mu.Lock()
	k.keys[keyName.String()] = append([]byte(nil), privateKeyDer...)
	k.certificates[certificate.Name.String()] = certificate
	k.mu.Unlock()

	if err := k.Sign(certificate, certificate.Name); err != nil {
		return nil, err
	}
	return certificate, nil
}

// Certificate returns a certificate previously issued by this KeyChain.
func (k *KeyChain) Certificate(name ndn.Name) (*ndn.Data, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	certificate, ok := k.certificates[name.String()]
	if !ok {
		return nil, fmt.Errorf("%w: certificate %s", ErrUnknownKey, name)
	}
	return certificate, nil
}

// PrivateKey returns the PKCS#8 private key stored under keyName.
func (k *KeyChain) PrivateKey(keyName ndn.Name) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	der, ok := k.keys[keyName.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, keyName)
	}
	return append([]byte(nil), der...), nil
}

// Sign stamps data with a SHA256-with-RSA signature by the key behind
// certificateName.
func (k *KeyChain) Sign(data *ndn.Data, certificateName ndn.Name) error {
	der, err := k.PrivateKey(KeyNameOf(certificateName))
	if err != nil {
		return err
	}
	key, err := encryption.ParseRsaPrivateKey(der)
	if err != nil {
		return err
	}

	data.SignatureInfo = ndn.SignatureInfo{Type: ndn.SignatureSha256WithRsa, KeyLocator: certificateName}
	portion, err := data.SignedPortion()
	if err != nil {
		return fmt.Errorf("keychain: encode signed portion: %w", err)
	}
	digest := sha256.Sum256(portion)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return fmt.Errorf("keychain: sign %s: %w", data.Name, err)
	}
	data.SignatureValue = signature
	return nil
}

// Verify checks the signature of data against a PKIX public key.
func Verify(data *ndn.Data, publicKeyDer []byte) error {
	if data.SignatureInfo.Type != ndn.SignatureSha256WithRsa {
		return fmt.Errorf("%w: signature type %d", ErrInvalidSignature, data.SignatureInfo.Type)
	}
	key, err := encryption.ParseRsaPublicKey(publicKeyDer)
	if err != nil {
		return err
	}
	portion, err := data.SignedPortion()
	if err != nil {
		return fmt.Errorf("keychain: encode signed portion: %w", err)
	}
	digest := sha256.Sum256(portion)
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], data.SignatureValue); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
