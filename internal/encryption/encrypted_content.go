// Package encryption carries the encrypted-content wire format and the
// symmetric and asymmetric primitives used to build the key hierarchy.
package encryption

import (
	"errors"
	"fmt"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/tlv"
)

var (
	// ErrDecoding is returned for malformed EncryptedContent input.
	ErrDecoding = errors.New("encryption: malformed encrypted content")
	// ErrUnsupportedAlgorithm is returned for algorithms this package does
	// not implement.
	ErrUnsupportedAlgorithm = errors.New("encryption: unsupported algorithm")
	// ErrDecryption is returned when ciphertext cannot be opened with the
	// supplied key.
	ErrDecryption = errors.New("encryption: decryption failed")
)

// Algorithm identifies how an EncryptedContent payload was produced.
type Algorithm uint64

const (
	AlgorithmAesEcb  Algorithm = 0
	AlgorithmAesCbc  Algorithm = 1
	AlgorithmRsaPkcs Algorithm = 2
	AlgorithmRsaOaep Algorithm = 3
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmAesEcb:
		return "aes-ecb"
	case AlgorithmAesCbc:
		return "aes-cbc"
	case AlgorithmRsaPkcs:
		return "rsa-pkcs"
	case AlgorithmRsaOaep:
		return "rsa-oaep"
	}
	return fmt.Sprintf("Algorithm(%d)", uint64(a))
}

// EncryptedContent is a ciphertext together with the name of the key that
// opens it.
type EncryptedContent struct {
	Algorithm     Algorithm
	KeyLocator    ndn.Name
	Payload       []byte
	InitialVector []byte
}

// Encode returns the TLV wire form.
func (c EncryptedContent) Encode() ([]byte, error) {
	e := tlv.NewEncoder()
	if err := c.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes()
}

// EncodeTo appends the TLV wire form to e.
func (c EncryptedContent) EncodeTo(e *tlv.Encoder) error {
	return e.WriteNested(tlv.EncryptedContent, func(inner *tlv.Encoder) error {
		if err := inner.WriteNested(tlv.KeyLocator, c.KeyLocator.EncodeTo); err != nil {
			return err
		}
		inner.WriteNonNegativeInteger(tlv.EncryptionAlgorithm, uint64(c.Algorithm))
		inner.WriteBlock(tlv.EncryptedPayload, c.Payload)
		if len(c.InitialVector) > 0 {
			inner.WriteBlock(tlv.InitialVector, c.InitialVector)
		}
		return nil
	})
}

// DecodeEncryptedContent parses a single EncryptedContent element. Trailing
// bytes are rejected.
func DecodeEncryptedContent(wire []byte) (EncryptedContent, error) {
	d := tlv.NewDecoder(wire)
	c, err := decodeEncryptedContent(d)
	if err != nil {
		return EncryptedContent{}, err
	}
	if !d.Empty() {
		return EncryptedContent{}, fmt.Errorf("%w: trailing bytes", ErrDecoding)
	}
	return c, nil
}

func decodeEncryptedContent(outer *tlv.Decoder) (EncryptedContent, error) {
	value, err := outer.ReadBlock(tlv.EncryptedContent)
	if err != nil {
		return EncryptedContent{}, fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	d := tlv.NewDecoder(value)

	locator, err := d.ReadBlock(tlv.KeyLocator)
	if err != nil {
		return EncryptedContent{}, fmt.Errorf("%w: key locator: %v", ErrDecoding, err)
	}
	var c EncryptedContent
	if c.KeyLocator, err = ndn.DecodeName(locator); err != nil {
		return EncryptedContent{}, fmt.Errorf("%w: key locator: %v", ErrDecoding, err)
	}
	algorithm, err := d.ReadNonNegativeInteger(tlv.EncryptionAlgorithm)
	if err != nil {
		return EncryptedContent{}, fmt.Errorf("%w: algorithm: %v", ErrDecoding, err)
	}
	c.Algorithm = Algorithm(algorithm)
	payload, err := d.ReadBlock(tlv.EncryptedPayload)
	if err != nil {
		return EncryptedContent{}, fmt.Errorf("%w: payload: %v", ErrDecoding, err)
	}
	c.Payload = append([]byte(nil), payload...)
	iv, ok, err := d.ReadOptionalBlock(tlv.InitialVector)
	if err != nil {
		return EncryptedContent{}, fmt.Errorf("%w: initial vector: %v", ErrDecoding, err)
	}
	if ok {
		c.InitialVector = append([]byte(nil), iv...)
	}
	if !d.Empty() {
		return EncryptedContent{}, fmt.Errorf("%w: unexpected element after payload", ErrDecoding)
	}
	return c, nil
}

// HybridContent is a payload encrypted under a one-time symmetric key
// ("nonce") together with that nonce encrypted under a public key. On the
// wire the two EncryptedContent elements are concatenated, nonce first.
type HybridContent struct {
	Nonce   EncryptedContent
	Payload EncryptedContent
}

// Encode returns the concatenated wire form.
func (h HybridContent) Encode() ([]byte, error) {
	e := tlv.NewEncoder()
	if err := h.Nonce.EncodeTo(e); err != nil {
		return nil, err
	}
	if err := h.Payload.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes()
}

// DecodeHybridContent splits wire into its nonce and payload elements.
func DecodeHybridContent(wire []byte) (HybridContent, error) {
	d := tlv.NewDecoder(wire)
	nonce, err := decodeEncryptedContent(d)
	if err != nil {
		return HybridContent{}, fmt.Errorf("nonce: %w", err)
	}
	payload, err := decodeEncryptedContent(d)
	if err != nil {
		return HybridContent{}, fmt.Errorf("payload: %w", err)
	}
	if !d.Empty() {
		return HybridContent{}, fmt.Errorf("%w: trailing bytes", ErrDecoding)
	}
	return HybridContent{Nonce: nonce, Payload: payload}, nil
}
