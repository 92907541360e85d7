package app

import "github.com/dkeye/Switchboard/internal/domain"

const DefaultSwitchThreshold = 10

// Policy arbitrates a room's transport topology. Decide is pure and
// hysteresis-free: identical inputs always produce identical output, and the
// caller only notifies the room when the output differs from the stored mode.
type Policy interface {
	Decide(current domain.Mode, members int, sfuUp, meshUp bool) domain.Mode
}

// ThresholdPolicy prefers whichever backing service is alive and falls back
// to a member-count threshold when both are. With both services down the
// room degrades to p2p so signaling-only chat and presence keep working.
type ThresholdPolicy struct {
	SwitchThreshold int
}

func (p ThresholdPolicy) Decide(_ domain.Mode, members int, sfuUp, meshUp bool) domain.Mode {
	if !sfuUp {
		return domain.ModeP2P
	}
	if !meshUp {
		return domain.ModeSFU
	}
	threshold := p.SwitchThreshold
	if threshold <= 0 {
		threshold = DefaultSwitchThreshold
	}
	if members >= threshold {
		return domain.ModeSFU
	}
	return domain.ModeP2P
}
