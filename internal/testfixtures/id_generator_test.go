package testfixtures

import (
	"testing"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("")

	first := gen.Next()
	second := gen.Next()

	if first != "k-1" || second != "k-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
}

func TestIDGeneratorReset(t *testing.T) {
	gen := NewIDGenerator("member")
	_ = gen.Next()
	gen.Reset()

	if next := gen.Next(); next != "member-1" {
		t.Fatalf("expected member-1 after reset, got %q", next)
	}
}

func TestIDGeneratorKeyName(t *testing.T) {
	gen := NewIDGenerator("k")
	got := gen.KeyName(ndn.MustParseName("/member/alice"), 3)
	if got.String() != "/member/alice/KEY/k-3" {
		t.Fatalf("unexpected key name %s", got)
	}
}
