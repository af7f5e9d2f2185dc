package schedule

import (
	"fmt"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/tlv"
)

// Encode returns the TLV wire form of the schedule.
func (s *Schedule) Encode() ([]byte, error) {
	e := tlv.NewEncoder()
	err := e.WriteNested(tlv.Schedule, func(inner *tlv.Encoder) error {
		if err := inner.WriteNested(tlv.WhiteIntervalList, encodeList(s.white)); err != nil {
			return err
		}
		return inner.WriteNested(tlv.BlackIntervalList, encodeList(s.black))
	})
	if err != nil {
		return nil, err
	}
	return e.Bytes()
}

func encodeList(set []RepetitiveInterval) func(*tlv.Encoder) error {
	return func(e *tlv.Encoder) error {
		for _, r := range set {
			if err := e.WriteNested(tlv.RepetitiveInterval, r.encodeTo); err != nil {
				return err
			}
		}
		return nil
	}
}

func (r RepetitiveInterval) encodeTo(e *tlv.Encoder) error {
	e.WriteBlock(tlv.StartDate, []byte(ToIsoString(r.startDate)))
	e.WriteBlock(tlv.EndDate, []byte(ToIsoString(r.endDate)))
	e.WriteNonNegativeInteger(tlv.IntervalStartHour, uint64(r.startHour))
	e.WriteNonNegativeInteger(tlv.IntervalEndHour, uint64(r.endHour))
	e.WriteNonNegativeInteger(tlv.NRepeats, uint64(r.nRepeats))
	e.WriteNonNegativeInteger(tlv.RepeatUnit, uint64(r.unit))
	return nil
}

// DecodeSchedule parses a schedule from its wire form. Intervals that fail
// validation are reported as decoding errors.
func DecodeSchedule(wire []byte) (*Schedule, error) {
	outer := tlv.NewDecoder(wire)
	value, err := outer.ReadBlock(tlv.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	if !outer.Empty() {
		return nil, fmt.Errorf("%w: trailing bytes after schedule", ErrDecoding)
	}

	d := tlv.NewDecoder(value)
	s := New()
	white, err := d.ReadBlock(tlv.WhiteIntervalList)
	if err != nil {
		return nil, fmt.Errorf("%w: white list: %v", ErrDecoding, err)
	}
	if err := decodeList(white, s.AddWhiteInterval); err != nil {
		return nil, err
	}
	black, err := d.ReadBlock(tlv.BlackIntervalList)
	if err != nil {
		return nil, fmt.Errorf("%w: black list: %v", ErrDecoding, err)
	}
	if err := decodeList(black, s.AddBlackInterval); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeList(value []byte, add func(RepetitiveInterval) *Schedule) error {
	d := tlv.NewDecoder(value)
	for !d.Empty() {
		inner, err := d.ReadBlock(tlv.RepetitiveInterval)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecoding, err)
		}
		r, err := decodeRepetitiveInterval(inner)
		if err != nil {
			return err
		}
		add(r)
	}
	return nil
}

func decodeRepetitiveInterval(value []byte) (RepetitiveInterval, error) {
	d := tlv.NewDecoder(value)
	readDate := func(typ uint64) (time.Time, error) {
		raw, err := d.ReadBlock(typ)
		if err != nil {
			return time.Time{}, err
		}
		return FromIsoString(string(raw))
	}

	startDate, err := readDate(tlv.StartDate)
	if err != nil {
		return RepetitiveInterval{}, fmt.Errorf("%w: start date: %v", ErrDecoding, err)
	}
	endDate, err := readDate(tlv.EndDate)
	if err != nil {
		return RepetitiveInterval{}, fmt.Errorf("%w: end date: %v", ErrDecoding, err)
	}
	var fields [4]uint64
	for i, typ := range []uint64{tlv.IntervalStartHour, tlv.IntervalEndHour, tlv.NRepeats, tlv.RepeatUnit} {
		if fields[i], err = d.ReadNonNegativeInteger(typ); err != nil {
			return RepetitiveInterval{}, fmt.Errorf("%w: field %d: %v", ErrDecoding, typ, err)
		}
		if fields[i] > 1<<31 {
			return RepetitiveInterval{}, fmt.Errorf("%w: field %d out of range", ErrDecoding, typ)
		}
	}

	r, err := NewRepetitiveInterval(startDate, endDate, int(fields[0]), int(fields[1]), int(fields[2]), RepeatUnit(fields[3]))
	if err != nil {
		return RepetitiveInterval{}, fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	return r, nil
}
