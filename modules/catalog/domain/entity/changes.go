package entity

// Tier names one of the progressive projection levels.
type Tier int

const (
	TierMini Tier = iota
	TierShort
	TierFull
)

func (t Tier) String() string {
	switch t {
	case TierMini:
		return "mini"
	case TierShort:
		return "short"
	case TierFull:
		return "full"
	default:
		return "unknown"
	}
}

// ChangeSet records which tiers an update patch actually touched. A patch
// that marks no tier is a no-op and must be rejected, not silently
// committed.
type ChangeSet struct {
	tiers [3]bool
}

func (c *ChangeSet) Mark(t Tier) {
	if t >= TierMini && t <= TierFull {
		c.tiers[t] = true
	}
}

func (c *ChangeSet) Changed(t Tier) bool {
	if t < TierMini || t > TierFull {
		return false
	}
	return c.tiers[t]
}

func (c *ChangeSet) Any() bool {
	return c.tiers[TierMini] || c.tiers[TierShort] || c.tiers[TierFull]
}
