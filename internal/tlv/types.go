// Package tlv implements the NDN type-length-value wire format used for packets,
// schedules and encrypted content.
package tlv

// Packet and field type numbers.
const (
	Interest         uint64 = 5
	Data             uint64 = 6
	Name             uint64 = 7
	NameComponent    uint64 = 8
	Selectors        uint64 = 9
	Nonce            uint64 = 10
	InterestLifetime uint64 = 12
	ChildSelector    uint64 = 17
	MustBeFresh      uint64 = 18
	Any              uint64 = 19
	MetaInfo         uint64 = 20
	Content          uint64 = 21
	SignatureInfo    uint64 = 22
	SignatureValue   uint64 = 23
	ContentType      uint64 = 24
	FreshnessPeriod  uint64 = 25
	Exclude          uint64 = 16
	SignatureType    uint64 = 27
	KeyLocator       uint64 = 28
	ForwardingHint   uint64 = 30
)

// Group encryption type numbers.
const (
	EncryptedContent    uint64 = 130
	EncryptionAlgorithm uint64 = 131
	EncryptedPayload    uint64 = 132
	InitialVector       uint64 = 133
	StartDate           uint64 = 134
	EndDate             uint64 = 135
	IntervalStartHour   uint64 = 136
	IntervalEndHour     uint64 = 137
	NRepeats            uint64 = 138
	RepeatUnit          uint64 = 139
	RepetitiveInterval  uint64 = 140
	WhiteIntervalList   uint64 = 141
	BlackIntervalList   uint64 = 142
	Schedule            uint64 = 143
)
