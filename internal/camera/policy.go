package camera

import (
	"fmt"
)

// SelectionPolicy names a strategy for picking one Capability per session.
type SelectionPolicy string

const (
	// PolicyLargestArea picks the capability with the most pixels.
	PolicyLargestArea SelectionPolicy = "largest-area"
	// PolicyLast picks the last enumerated capability. Some backends list
	// their preferred mode last.
	PolicyLast SelectionPolicy = "last"
	// PolicyClosest picks the capability whose area is closest to the
	// requested viewport.
	PolicyClosest SelectionPolicy = "closest"
)

// ParsePolicy validates a policy name. Empty means PolicyLargestArea.
func ParsePolicy(s string) (SelectionPolicy, error) {
	switch SelectionPolicy(s) {
	case "":
		return PolicyLargestArea, nil
	case PolicyLargestArea, PolicyLast, PolicyClosest:
		return SelectionPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown capability selection policy %q", s)
	}
}

// Select applies the policy to caps. viewWidth and viewHeight are only
// used by PolicyClosest; when either is not positive it behaves like
// PolicyLargestArea. Ties keep the earliest entry.
func (p SelectionPolicy) Select(caps []Capability, viewWidth, viewHeight int) (Capability, error) {
	if len(caps) == 0 {
		return Capability{}, fmt.Errorf("no capabilities")
	}

	switch p {
	case PolicyLast:
		return caps[len(caps)-1], nil
	case PolicyClosest:
		if viewWidth > 0 && viewHeight > 0 {
			return closest(caps, viewWidth*viewHeight), nil
		}
	}
	return largest(caps), nil
}

func largest(caps []Capability) Capability {
	best := caps[0]
	for _, c := range caps[1:] {
		if c.Area() > best.Area() {
			best = c
		}
	}
	return best
}

func closest(caps []Capability, area int) Capability {
	best := caps[0]
	bestDiff := absInt(best.Area() - area)
	for _, c := range caps[1:] {
		if d := absInt(c.Area() - area); d < bestDiff {
			best, bestDiff = c, d
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
