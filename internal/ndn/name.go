// Package ndn models the Interest/Data packet layer: hierarchical names,
// exclude filters, Interests and signed Data.
package ndn

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/named-data/ndn-cpp-sub006/internal/tlv"
)

// ErrInvalidName is returned when a URI cannot be parsed into a Name.
var ErrInvalidName = errors.New("ndn: invalid name")

// Component is a single opaque name component.
type Component []byte

// NewComponent returns a component holding the bytes of s.
func NewComponent(s string) Component {
	return Component(s)
}

// Equal reports whether two components hold the same bytes.
func (c Component) Equal(other Component) bool {
	return bytes.Equal(c, other)
}

// Compare orders components canonically: shorter components sort first and
// equal-length components compare byte-wise.
func (c Component) Compare(other Component) int {
	if len(c) != len(other) {
		if len(c) < len(other) {
			return -1
		}
		return 1
	}
	return bytes.Compare(c, other)
}

// String returns the URI-escaped form of the component.
func (c Component) String() string {
	if strings.Trim(string(c), ".") == "" {
		return "..." + string(c)
	}
	var b strings.Builder
	for _, ch := range c {
		if isUnreserved(ch) {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", ch)
	}
	return b.String()
}

func isUnreserved(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' ||
		ch == '-' || ch == '.' || ch == '_' || ch == '~'
}

// Name is an ordered sequence of components.
type Name []Component

// ParseName parses a URI such as "/prefix/READ/location".
func ParseName(uri string) (Name, error) {
	uri = strings.TrimSpace(uri)
	uri = strings.TrimPrefix(uri, "ndn:")
	if uri == "" || uri == "/" {
		return Name{}, nil
	}
	if !strings.HasPrefix(uri, "/") {
		return nil, fmt.Errorf("%w: %q must start with '/'", ErrInvalidName, uri)
	}
	parts := strings.Split(strings.TrimSuffix(uri[1:], "/"), "/")
	name := make(Name, 0, len(parts))
	for _, part := range parts {
		comp, err := unescapeComponent(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidName, uri, err)
		}
		name = append(name, comp)
	}
	return name, nil
}

// MustParseName is ParseName for literals known to be valid.
func MustParseName(uri string) Name {
	name, err := ParseName(uri)
	if err != nil {
		panic(err)
	}
	return name
}

func unescapeComponent(part string) (Component, error) {
	if strings.Trim(part, ".") == "" {
		if len(part) < 3 {
			return nil, errors.New("component of fewer than three periods")
		}
		return Component(part[3:]), nil
	}
	out := make([]byte, 0, len(part))
	for i := 0; i < len(part); i++ {
		if part[i] != '%' {
			out = append(out, part[i])
			continue
		}
		if i+2 >= len(part) {
			return nil, errors.New("truncated percent escape")
		}
		v, err := strconv.ParseUint(part[i+1:i+3], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad percent escape %q", part[i:i+3])
		}
		out = append(out, byte(v))
		i += 2
	}
	return Component(out), nil
}

// Size returns the number of components.
func (n Name) Size() int {
	return len(n)
}

// Get returns the component at i; negative indexes count from the end.
func (n Name) Get(i int) Component {
	if i < 0 {
		i += len(n)
	}
	return n[i]
}

// Prefix returns the first count components; a negative count drops
// components from the end.
func (n Name) Prefix(count int) Name {
	if count < 0 {
		count += len(n)
	}
	if count < 0 {
		count = 0
	}
	if count > len(n) {
		count = len(n)
	}
	return n.clone(count, 0)
}

// SubName returns the components from start to the end.
func (n Name) SubName(start int) Name {
	if start < 0 {
		start += len(n)
	}
	out := make(Name, 0, len(n)-start)
	return append(out, n[start:]...)
}

func (n Name) clone(count, extra int) Name {
	out := make(Name, count, count+extra)
	copy(out, n[:count])
	return out
}

// Append returns a new name with the components added.
func (n Name) Append(comps ...Component) Name {
	out := n.clone(len(n), len(comps))
	return append(out, comps...)
}

// AppendString returns a new name with one component per string.
func (n Name) AppendString(parts ...string) Name {
	out := n.clone(len(n), len(parts))
	for _, p := range parts {
		out = append(out, NewComponent(p))
	}
	return out
}

// AppendName returns a new name with all components of other added.
func (n Name) AppendName(other Name) Name {
	return n.Append(other...)
}

// Equal reports component-wise equality.
func (n Name) Equal(other Name) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if !n[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether n is a prefix of other.
func (n Name) IsPrefixOf(other Name) bool {
	if len(n) > len(other) {
		return false
	}
	return n.Equal(other[:len(n)])
}

// Compare orders names component by component, a prefix sorting first.
func (n Name) Compare(other Name) int {
	for i := 0; i < len(n) && i < len(other); i++ {
		if c := n[i].Compare(other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(n) < len(other):
		return -1
	case len(n) > len(other):
		return 1
	}
	return 0
}

// String returns the URI form.
func (n Name) String() string {
	if len(n) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, c := range n {
		b.WriteByte('/')
		b.WriteString(c.String())
	}
	return b.String()
}

// EncodeTo appends the Name element.
func (n Name) EncodeTo(e *tlv.Encoder) error {
	return e.WriteNested(tlv.Name, func(inner *tlv.Encoder) error {
		for _, c := range n {
			inner.WriteBlock(tlv.NameComponent, c)
		}
		return nil
	})
}

// Encode returns the wire form of the Name element.
func (n Name) Encode() ([]byte, error) {
	e := tlv.NewEncoder()
	if err := n.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes()
}

// DecodeNameValue parses the value of a Name element.
func DecodeNameValue(value []byte) (Name, error) {
	d := tlv.NewDecoder(value)
	name := Name{}
	for !d.Empty() {
		comp, err := d.ReadBlock(tlv.NameComponent)
		if err != nil {
			return nil, err
		}
		name = append(name, Component(append([]byte(nil), comp...)))
	}
	return name, nil
}

// DecodeName parses a complete Name element.
func DecodeName(wire []byte) (Name, error) {
	value, err := tlv.NewDecoder(wire).ReadBlock(tlv.Name)
	if err != nil {
		return nil, err
	}
	return DecodeNameValue(value)
}
