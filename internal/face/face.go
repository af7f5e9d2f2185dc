// Package face is the Interest/Data transport boundary. Memory is a
// deterministic in-process implementation that answers Interests from a
// local repository and runs callbacks only from ProcessEvents.
package face

import (
	"errors"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
)

// ErrClosed is returned by ExpressInterest after Close.
var ErrClosed = errors.New("face: closed")

// Callbacks fired for an expressed Interest. Exactly one fires per Interest.
type (
	OnData    func(interest *ndn.Interest, data *ndn.Data)
	OnTimeout func(interest *ndn.Interest)
	OnNack    func(interest *ndn.Interest, reason NackReason)
)

// NackReason explains a network-level rejection.
type NackReason int

const (
	NackNone NackReason = iota
	NackCongestion
	NackDuplicate
	NackNoRoute
)

func (r NackReason) String() string {
	switch r {
	case NackCongestion:
		return "congestion"
	case NackDuplicate:
		return "duplicate"
	case NackNoRoute:
		return "no-route"
	}
	return "none"
}

// Face expresses Interests without blocking. Callbacks run later on the
// goroutine that pumps the face's events.
type Face interface {
	ExpressInterest(interest *ndn.Interest, onData OnData, onTimeout OnTimeout, onNack OnNack) (uint64, error)
}
