// Package bms writes BMS charts from a chart.Timeline
package bms

import "fmt"

// Fraction is a position or length as a part of a measure, always in lowest terms
type Fraction struct {
	Num int
	Den int
}

// NewFraction returns num/den reduced. A zero denominator yields 0/1.
func NewFraction(num, den int) Fraction {
	if den == 0 {
		return Fraction{0, 1}
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), den)
	return Fraction{num / g, den / g}
}

// Add returns f+g
func (f Fraction) Add(g Fraction) Fraction {
	return NewFraction(f.Num*g.Den+g.Num*f.Den, f.Den*g.Den)
}

// Sub returns f-g
func (f Fraction) Sub(g Fraction) Fraction {
	return NewFraction(f.Num*g.Den-g.Num*f.Den, f.Den*g.Den)
}

// Float returns the fraction as a float64
func (f Fraction) Float() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// IsZero reports whether f is zero
func (f Fraction) IsZero() bool {
	return f.Num == 0
}

// Rebase returns the numerator of f written over den. den must be a positive
// multiple of f.Den.
func (f Fraction) Rebase(den int) (int, bool) {
	if f.Den == 0 || den <= 0 || den%f.Den != 0 {
		return 0, false
	}
	return f.Num * (den / f.Den), true
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// LCM returns the least common multiple of the denominators of fs, or 1 for none
func LCM(fs ...Fraction) int {
	l := 1
	for _, f := range fs {
		if f.Den > 0 {
			l = l / gcd(l, f.Den) * f.Den
		}
	}
	return l
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
