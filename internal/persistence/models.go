package persistence

import "github.com/named-data/ndn-cpp-sub006/internal/ndn"

// Member is a group member's key bound to one schedule.
type Member struct {
	KeyName      ndn.Name
	ScheduleName string
	PublicKey    []byte
}

// Identity returns the identity owning the member key,
// <identity>/KEY/<keyId>.
func (m Member) Identity() ndn.Name {
	return IdentityOf(m.KeyName)
}

// IdentityOf strips the KEY and key id components from a key name.
func IdentityOf(keyName ndn.Name) ndn.Name {
	return keyName.Prefix(-2)
}

// KeyPair is a stored group key pair: the PKIX public E-Key and the PKCS#8
// private D-Key.
type KeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func cloneMember(m Member) Member {
	return Member{
		KeyName:      m.KeyName.Prefix(m.KeyName.Size()),
		ScheduleName: m.ScheduleName,
		PublicKey:    cloneBytes(m.PublicKey),
	}
}
