package resolve

import (
	"github.com/sydlexius/lightstick/internal/source"
)

// SelectByRole picks one asset from a set believed to depict the same
// entity. Profile wants the squarest image; banner wants the largest.
// Returns false only for an empty set.
func SelectByRole(assets []source.ImageAsset, role Role) (source.ImageAsset, bool) {
	if len(assets) == 0 {
		return source.ImageAsset{}, false
	}
	switch role {
	case RoleBanner:
		return selectBanner(assets), true
	default:
		return selectProfile(assets), true
	}
}

// selectProfile picks the asset with minimal |width-height|, ties broken by
// larger area. Undimensioned assets only win when nothing dimensioned exists.
func selectProfile(assets []source.ImageAsset) source.ImageAsset {
	best := assets[0]
	for _, a := range assets[1:] {
		if !a.HasDimensions() {
			continue
		}
		if !best.HasDimensions() {
			best = a
			continue
		}
		switch {
		case squareness(a) < squareness(best):
			best = a
		case squareness(a) == squareness(best) && a.Area() > best.Area():
			best = a
		}
	}
	return best
}

// selectBanner picks the largest-area dimensioned asset. When no asset
// carries dimensions the first one is accepted as-is rather than failing.
func selectBanner(assets []source.ImageAsset) source.ImageAsset {
	best := source.ImageAsset{}
	for _, a := range assets {
		if a.HasDimensions() && a.Area() > best.Area() {
			best = a
		}
	}
	if best.URL == "" {
		return assets[0]
	}
	return best
}

func squareness(a source.ImageAsset) int {
	d := a.Width - a.Height
	if d < 0 {
		return -d
	}
	return d
}
