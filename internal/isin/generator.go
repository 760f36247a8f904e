// Package isin generates mock ISO 6166 shaped instrument identifiers:
// country code, fixed alphabetic prefix, five random digits and a check digit.
package isin

import (
	"errors"       // Sentinel errors
	"math/rand/v2" // Serial sampling
	"strconv"      // Digit formatting
	"sync"         // Guards the random source
	"time"         // Default seed
)

const (
	CountryCode = "US"   // ISO 3166 country of the mock issuer
	Prefix      = "MOCK" // Fixed alphabetic issuer prefix
	Length      = 12     // Total identifier length

	DefaultMaxAttempts = 16 // Bound of the collision retry loop

	minSerial  = 10000 // Smallest five digit serial
	serialSpan = 90000 // Serials 10000 to 99999
)

// ErrExhausted is returned when every attempt collided with an issued identifier.
var ErrExhausted = errors.New("isin: generation attempts exhausted")

// Generator produces identifiers from a random source. Safe for concurrent use.
type Generator struct {
	mu          sync.Mutex // Guards rng
	rng         *rand.Rand // Serial source
	maxAttempts int        // Retry bound

	// OnCollision, when set, is called for every rejected candidate.
	OnCollision func(candidate string)
}

// NewGenerator builds a generator. A nil source is seeded from the clock,
// a non-positive maxAttempts falls back to DefaultMaxAttempts.
func NewGenerator(src rand.Source, maxAttempts int) *Generator {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15) // Second word decorrelated from the first
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts // Fall back to the default bound
	}
	return &Generator{rng: rand.New(src), maxAttempts: maxAttempts}
}

// MaxAttempts reports the retry bound.
func (g *Generator) MaxAttempts() int { return g.maxAttempts }

// Generate returns an identifier for which taken reports false.
func (g *Generator) Generate(taken func(string) bool) (string, error) {
	for range g.maxAttempts {
		candidate := g.next()
		if taken == nil || !taken(candidate) {
			return candidate, nil // Free identifier
		}
		if g.OnCollision != nil {
			g.OnCollision(candidate)
		}
	}
	return "", ErrExhausted // Every attempt collided
}

func (g *Generator) next() string {
	g.mu.Lock()
	serial := minSerial + g.rng.IntN(serialSpan)
	g.mu.Unlock()
	body := CountryCode + Prefix + strconv.Itoa(serial) // 11 characters
	return body + strconv.Itoa(CheckDigit(body))        // Append the check digit
}

// CheckDigit computes the ISIN Luhn check digit of an 11 character body.
// Letters expand to two digits (A=10 .. Z=35).
func CheckDigit(body string) int {
	digits := make([]int, 0, 2*len(body))
	for _, c := range body {
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, int(c-'0'))
		case c >= 'A' && c <= 'Z':
			v := int(c-'A') + 10                // A=10 .. Z=35
			digits = append(digits, v/10, v%10) // Two digits per letter
		}
	}
	sum := 0
	for pos, i := 0, len(digits)-1; i >= 0; pos, i = pos+1, i-1 {
		d := digits[i]
		if pos%2 == 0 {
			d *= 2 // Double every other digit from the right
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return (10 - sum%10) % 10 // Round up to the next multiple of ten
}

// Valid reports whether s has the generator's shape and a correct check digit.
func Valid(s string) bool {
	if len(s) != Length || s[:2] != CountryCode || s[2:6] != Prefix {
		return false // Wrong shape
	}
	for _, c := range s[6:] {
		if c < '0' || c > '9' {
			return false // Serial and check digit are numeric
		}
	}
	return int(s[11]-'0') == CheckDigit(s[:11])
}
