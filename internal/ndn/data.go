package ndn

import (
	"fmt"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/tlv"
)

// ContentType describes the payload of a Data packet.
type ContentType uint64

const (
	ContentTypeBlob ContentType = 0
	ContentTypeLink ContentType = 1
	ContentTypeKey  ContentType = 2
	ContentTypeNack ContentType = 3
)

// SignatureType identifies the signing algorithm of a Data packet.
type SignatureType uint64

const (
	SignatureDigestSha256  SignatureType = 0
	SignatureSha256WithRsa SignatureType = 1
)

// MetaInfo carries Data packet metadata.
type MetaInfo struct {
	ContentType     ContentType
	FreshnessPeriod time.Duration
}

// SignatureInfo describes how a Data packet was signed.
type SignatureInfo struct {
	Type       SignatureType
	KeyLocator Name
}

// Data is a named, signed content packet.
type Data struct {
	Name           Name
	MetaInfo       MetaInfo
	Content        []byte
	SignatureInfo  SignatureInfo
	SignatureValue []byte
}

// NewData returns an unsigned Data packet with the given name.
func NewData(name Name) *Data {
	return &Data{Name: name}
}

// SignedPortion returns the bytes covered by the signature.
func (d *Data) SignedPortion() ([]byte, error) {
	e := tlv.NewEncoder()
	if err := d.encodeSignedPortion(e); err != nil {
		return nil, err
	}
	return e.Bytes()
}

func (d *Data) encodeSignedPortion(e *tlv.Encoder) error {
	if err := d.Name.EncodeTo(e); err != nil {
		return err
	}
	if err := e.WriteNested(tlv.MetaInfo, func(inner *tlv.Encoder) error {
		if d.MetaInfo.ContentType != ContentTypeBlob {
			inner.WriteNonNegativeInteger(tlv.ContentType, uint64(d.MetaInfo.ContentType))
		}
		if d.MetaInfo.FreshnessPeriod > 0 {
			inner.WriteNonNegativeInteger(tlv.FreshnessPeriod, uint64(d.MetaInfo.FreshnessPeriod.Milliseconds()))
		}
		return nil
	}); err != nil {
		return err
	}
	e.WriteBlock(tlv.Content, d.Content)
	return e.WriteNested(tlv.SignatureInfo, func(inner *tlv.Encoder) error {
		inner.WriteNonNegativeInteger(tlv.SignatureType, uint64(d.SignatureInfo.Type))
		if len(d.SignatureInfo.KeyLocator) == 0 {
			return nil
		}
		return inner.WriteNested(tlv.KeyLocator, d.SignatureInfo.KeyLocator.EncodeTo)
	})
}

// Encode returns the full wire form of the packet.
func (d *Data) Encode() ([]byte, error) {
	e := tlv.NewEncoder()
	err := e.WriteNested(tlv.Data, func(inner *tlv.Encoder) error {
		if err := d.encodeSignedPortion(inner); err != nil {
			return err
		}
		inner.WriteBlock(tlv.SignatureValue, d.SignatureValue)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.Bytes()
}

// DecodeData parses a Data packet from its wire form.
func DecodeData(wire []byte) (*Data, error) {
	value, err := tlv.NewDecoder(wire).ReadBlock(tlv.Data)
	if err != nil {
		return nil, fmt.Errorf("ndn: decode data: %w", err)
	}
	d := tlv.NewDecoder(value)
	nameValue, err := d.ReadBlock(tlv.Name)
	if err != nil {
		return nil, fmt.Errorf("ndn: decode data name: %w", err)
	}
	data := &Data{}
	if data.Name, err = DecodeNameValue(nameValue); err != nil {
		return nil, err
	}

	meta, ok, err := d.ReadOptionalBlock(tlv.MetaInfo)
	if err != nil {
		return nil, err
	}
	if ok {
		md := tlv.NewDecoder(meta)
		contentType, _, err := md.ReadOptionalNonNegativeInteger(tlv.ContentType)
		if err != nil {
			return nil, err
		}
		freshness, _, err := md.ReadOptionalNonNegativeInteger(tlv.FreshnessPeriod)
		if err != nil {
			return nil, err
		}
		data.MetaInfo = MetaInfo{
			ContentType:     ContentType(contentType),
			FreshnessPeriod: time.Duration(freshness) * time.Millisecond,
		}
	}

	content, _, err := d.ReadOptionalBlock(tlv.Content)
	if err != nil {
		return nil, err
	}
	data.Content = append([]byte(nil), content...)

	sigInfo, err := d.ReadBlock(tlv.SignatureInfo)
	if err != nil {
		return nil, fmt.Errorf("ndn: decode signature info: %w", err)
	}
	sd := tlv.NewDecoder(sigInfo)
	sigType, err := sd.ReadNonNegativeInteger(tlv.SignatureType)
	if err != nil {
		return nil, err
	}
	data.SignatureInfo.Type = SignatureType(sigType)
	locator, ok, err := sd.ReadOptionalBlock(tlv.KeyLocator)
	if err != nil {
		return nil, err
	}
	if ok {
		if data.SignatureInfo.KeyLocator, err = DecodeName(locator); err != nil {
			return nil, err
		}
	}

	sigValue, err := d.ReadBlock(tlv.SignatureValue)
	if err != nil {
		return nil, fmt.Errorf("ndn: decode signature value: %w", err)
	}
	data.SignatureValue = append([]byte(nil), sigValue...)
	return data, nil
}
