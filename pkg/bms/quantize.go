package bms

import "math"

// Two grid families are searched: quarters subdivided down to 1/128 and
// thirds subdivided down to 1/192.
const (
	quarterRoot = 4
	quarterCap  = 128
	tripletRoot = 3
	tripletCap  = 192

	refineSteps = 6

	// Offsets within this many ms of a measure start sit on the start
	alignMs = 2
)

// Quantizer maps millisecond offsets onto measure fractions. It remembers
// results for the current measure so nearby offsets resolve the same way;
// call Reset when a new measure begins.
type Quantizer struct {
	memo map[int]Fraction
}

// NewQuantizer returns a Quantizer with an empty memo
func NewQuantizer() *Quantizer {
	return &Quantizer{memo: make(map[int]Fraction)}
}

// Reset forgets every remembered offset
func (q *Quantizer) Reset() {
	clear(q.memo)
}

// Offset quantizes an offset in ms from the start of a measure lasting
// measureMs. An offset rounding up to the measure end folds to 0.
func (q *Quantizer) Offset(offsetMs, measureMs float64) Fraction {
	f, _ := q.Position(offsetMs, measureMs)
	return f
}

// Position quantizes like Offset and also reports whether the offset rounds
// up to the end of the measure. Such an offset is the next measure's downbeat.
func (q *Quantizer) Position(offsetMs, measureMs float64) (Fraction, bool) {
	offsetMs = round5(math.Abs(offsetMs))
	if offsetMs <= alignMs {
		return Fraction{0, 1}, false
	}
	if f, ok := q.memo[int(offsetMs)]; ok {
		return f, false
	}
	if offsetMs >= measureMs {
		return Fraction{0, 1}, true
	}
	f := q.nearest(offsetMs/measureMs, measureMs)
	if f.Num >= f.Den {
		return Fraction{0, 1}, true
	}
	return f, false
}

// Approximate finds the grid fraction closest to n, a position within a
// measure lasting measureMs. Ties go to the quarter family and a full measure
// folds back to zero.
func (q *Quantizer) Approximate(n, measureMs float64) Fraction {
	f := q.nearest(n, measureMs)
	if f.Num >= f.Den {
		return Fraction{0, 1}
	}
	return f
}

func (q *Quantizer) nearest(n, measureMs float64) Fraction {
	quarter, quarterErr := search(n, measureMs, quarterRoot, quarterCap)
	triplet, tripletErr := search(n, measureMs, tripletRoot, tripletCap)

	best := quarter
	if tripletErr < quarterErr {
		best = triplet
	}
	if !best.IsZero() && best.Num < best.Den {
		q.remember(best, measureMs)
	}
	return best
}

func (q *Quantizer) remember(f Fraction, measureMs float64) {
	key := int(f.Float() * measureMs)
	q.memo[key] = f
	q.memo[key-1] = f
	q.memo[key+1] = f
}

// search walks one grid family: a greedy pass over 1/root steps, then halving
// steps toward n, then single cap-sized nudges while they still help.
func search(n, measureMs float64, root, limit int) (Fraction, float64) {
	closeTo := func(f Fraction) bool {
		return math.Abs(measureMs*(f.Float()-n)) < 1 || round5(f.Float()) == round5(n)
	}

	sum := Fraction{0, 1}
	unit := Fraction{1, root}
	for sum.Add(unit).Float() <= n {
		sum = sum.Add(unit)
	}

	done := closeTo(sum)
	step := root
	for i := 0; i < refineSteps && !done && step*2 <= limit; i++ {
		step *= 2
		if sum.Float() > n {
			sum = sum.Sub(Fraction{1, step})
		} else {
			sum = sum.Add(Fraction{1, step})
		}
		done = closeTo(sum)
	}

	if !done {
		nudge := Fraction{1, limit}
		for i := 0; i < limit; i++ {
			next := sum.Add(nudge)
			if sum.Float() > n {
				next = sum.Sub(nudge)
			}
			if math.Abs(n-next.Float()) >= math.Abs(n-sum.Float()) {
				break
			}
			sum = next
			if closeTo(sum) {
				break
			}
		}
	}
	return sum, math.Abs(n - sum.Float())
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
