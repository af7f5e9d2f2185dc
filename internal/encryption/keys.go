package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
)

const (
	// AesKeySize is the content key and nonce length in bytes (AES-128).
	AesKeySize = 16
	// DefaultRsaKeySize is the modulus length, in bits, of generated group
	// key pairs.
	DefaultRsaKeySize = 2048
)

// GenerateAesKey returns size random bytes.
func GenerateAesKey(size int) ([]byte, error) {
	switch size {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption: aes key size %d", size)
	}
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("encryption: generate aes key: %w", err)
	}
	return key, nil
}

// AesEncrypt encrypts plaintext with PKCS#7 padding. AES-CBC requires a
// block-sized iv; AES-ECB ignores it.
func AesEncrypt(algorithm Algorithm, key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encryption: aes cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))

	switch algorithm {
	case AlgorithmAesCbc:
		if len(iv) != block.BlockSize() {
			return nil, fmt.Errorf("encryption: iv length %d", len(iv))
		}
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	case AlgorithmAesEcb:
		for i := 0; i < len(padded); i += block.BlockSize() {
			block.Encrypt(out[i:], padded[i:])
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
	return out, nil
}

// AesDecrypt reverses AesEncrypt.
func AesDecrypt(algorithm Algorithm, key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encryption: aes cipher: %w", err)
	}
	size := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%size != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrDecryption, len(ciphertext))
	}
	out := make([]byte, len(ciphertext))

	switch algorithm {
	case AlgorithmAesCbc:
		if len(iv) != size {
			return nil, fmt.Errorf("%w: iv length %d", ErrDecryption, len(iv))
		}
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	case AlgorithmAesEcb:
		for i := 0; i < len(ciphertext); i += size {
			block.Decrypt(out[i:], ciphertext[i:])
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
	return pkcs7Unpad(out, size)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
		}
	}
	return b[:len(b)-n], nil
}

// GenerateRsaKey returns a new private key in PKCS#8 DER form.
func GenerateRsaKey(bits int) ([]byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("encryption: generate rsa key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("encryption: marshal rsa key: %w", err)
	}
	return der, nil
}

// DeriveRsaPublicKey returns the PKIX DER public key of a PKCS#8 private key.
func DeriveRsaPublicKey(privateKeyDer []byte) ([]byte, error) {
	key, err := ParseRsaPrivateKey(privateKeyDer)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encryption: marshal rsa public key: %w", err)
	}
	return der, nil
}

// ParseRsaPrivateKey decodes a PKCS#8 DER RSA private key.
func ParseRsaPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("encryption: parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("encryption: private key is %T, not rsa", parsed)
	}
	return key, nil
}

// ParseRsaPublicKey decodes a PKIX DER RSA public key.
func ParseRsaPublicKey(der []byte) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("encryption: parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("encryption: public key is %T, not rsa", parsed)
	}
	return key, nil
}

// RsaEncrypt encrypts plaintext under a PKIX DER public key.
func RsaEncrypt(algorithm Algorithm, publicKeyDer, plaintext []byte) ([]byte, error) {
	key, err := ParseRsaPublicKey(publicKeyDer)
	if err != nil {
		return nil, err
	}
	var out []byte
	switch algorithm {
	case AlgorithmRsaOaep:
		out, err = rsa.EncryptOAEP(sha1.New(), rand.Reader, key, plaintext, nil)
	case AlgorithmRsaPkcs:
		out, err = rsa.EncryptPKCS1v15(rand.Reader, key, plaintext)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("encryption: rsa encrypt: %w", err)
	}
	return out, nil
}

// RsaDecrypt decrypts ciphertext with a PKCS#8 DER private key.
func RsaDecrypt(algorithm Algorithm, privateKeyDer, ciphertext []byte) ([]byte, error) {
	key, err := ParseRsaPrivateKey(privateKeyDer)
	if err != nil {
		return nil, err
	}
	var out []byte
	switch algorithm {
	case AlgorithmRsaOaep:
		out, err = rsa.DecryptOAEP(sha1.New(), nil, key, ciphertext, nil)
	case AlgorithmRsaPkcs:
		out, err = rsa.DecryptPKCS1v15(nil, key, ciphertext)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return out, nil
}
