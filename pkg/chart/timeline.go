package chart

import "sort"

// Timeline is the time-ordered merge of anchors, notes and samples. At equal
// times tempo changes come first; otherwise input order is kept.
type Timeline []Event

// NewTimeline merges anchors, notes and samples into one ordered timeline
func NewTimeline(anchors []TimingPoint, notes []Note, samples []Sample) Timeline {
	tl := make(Timeline, 0, len(anchors)+len(notes)+len(samples))
	for _, tp := range anchors {
		tl = append(tl, TempoChange{Point: tp})
	}
	for _, n := range notes {
		tl = append(tl, n)
	}
	for _, s := range samples {
		tl = append(tl, s)
	}

	sort.SliceStable(tl, func(i, j int) bool {
		if tl[i].At() != tl[j].At() {
			return tl[i].At() < tl[j].At()
		}
		return tl[i].priority() < tl[j].priority()
	})
	return tl
}

// Earliest returns the time of the first event, or false for an empty timeline
func (tl Timeline) Earliest() (int, bool) {
	if len(tl) == 0 {
		return 0, false
	}
	return tl[0].At(), true
}
