package chart

import (
	"math"
	"strconv"
)

// MaxShortTempo is the largest tempo the one-byte tempo channel can carry
const MaxShortTempo = 255

// Tempo is a beats-per-minute value after rounding
type Tempo struct {
	Value    float64
	Integral bool
}

// DeriveTempo converts a beat length into a tempo. Floating error is cleaned
// up by looking at the first four decimals: all zeros truncate, all nines round
// up, anything else keeps four decimals.
func DeriveTempo(msPerBeat float64) Tempo {
	bpm := 60000 / msPerBeat

	zeros, nines := 0, 0
	for n := 1; n <= 4; n++ {
		switch nthDecimal(bpm, n) {
		case 0:
			zeros++
		case 9:
			nines++
		}
	}

	switch {
	case zeros == 4:
		return Tempo{Value: math.Trunc(bpm), Integral: true}
	case nines == 4:
		return Tempo{Value: math.Round(bpm), Integral: true}
	default:
		return Tempo{Value: math.Trunc(bpm*1e4) / 1e4}
	}
}

func nthDecimal(v float64, n int) int64 {
	return int64(v*math.Pow10(n)) % 10
}

// Short reports whether the tempo fits the integer tempo channel
func (t Tempo) Short() bool {
	return t.Integral && t.Value >= 1 && t.Value <= MaxShortTempo
}

func (t Tempo) String() string {
	if t.Integral {
		return strconv.FormatInt(int64(t.Value), 10)
	}
	return strconv.FormatFloat(t.Value, 'f', -1, 64)
}
