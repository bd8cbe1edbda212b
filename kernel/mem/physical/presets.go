package physical

import "github.com/lunakernel/pfnalloc/kernel/mem/pfn"

// MaxAreas upper-bounds the number of distinct areas the allocator can
// track at once: the four zone presets below plus room for a handful of
// extra caller-defined areas.
const MaxAreas = 8

// AreaAnyNumber directs AreaInit to auto-partition the incoming range
// across the configured presets instead of installing it into a single
// slot.
const AreaAnyNumber = -1

// Preset area slot numbers. These, like the cutoffs below, are
// configuration inputs rather than part of the algorithm: nothing in the
// buddy/area/reservation logic inspects them directly.
const (
	AreaLowestNumber = 0
	AreaLowNumber    = 1
	AreaNormalNumber = 2
	AreaHighNumber   = 3
)

// AreaPresets configures the cutoff pfns used by areaInitAuto. A cutoff's
// Configured flag being false means that preset is skipped entirely. The
// Lowest preset has no cutoff of its own: it is always the implicit floor
// remainder below whichever other presets are configured.
type AreaPresets struct {
	Lowest, Low, Normal, High presetCutoff
}

type presetCutoff struct {
	Number     int
	Cutoff     pfn.Frame
	Configured bool
}

// defaultPresets starts with nothing configured: until the embedder calls
// SetPresets with cutoffs appropriate for its platform, areaInitAuto
// installs the whole incoming range into the lowest slot (the cutoffs are
// board/firmware specific and out of scope for the allocator algorithm
// itself).
func defaultPresets() AreaPresets {
	return AreaPresets{
		Lowest: presetCutoff{Number: AreaLowestNumber},
		Low:    presetCutoff{Number: AreaLowNumber},
		Normal: presetCutoff{Number: AreaNormalNumber},
		High:   presetCutoff{Number: AreaHighNumber},
	}
}

// orderedDescending returns the configured presets from highest cutoff to
// lowest, the order areaInitAuto peels them off in. Lowest is excluded:
// areaInitAuto installs it separately as the final floor remainder, and
// including it here would double-init that slot whenever a caller sets a
// Lowest cutoff.
func (p AreaPresets) orderedDescending() []presetCutoff {
	all := []presetCutoff{p.High, p.Normal, p.Low}
	out := make([]presetCutoff, 0, len(all))
	for _, c := range all {
		if c.Configured {
			out = append(out, c)
		}
	}
	return out
}
