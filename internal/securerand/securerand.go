// Package securerand is the one place fhirguard draws randomness from.
// A seedable general-purpose generator is disqualifying once its output
// feeds differential-privacy noise, so everything here is built on
// crypto/rand.
package securerand

import (
	"crypto/rand"
	"encoding/binary"
	"math"

	"github.com/savegress/fhirguard/pkg/ferrors"
)

// Source draws cryptographically secure randomness for perturbation and
// differential-privacy noise.
type Source struct{}

// New returns a Source backed by crypto/rand.
func New() *Source { return &Source{} }

// Uniform01 returns a uniform float64 in [0, 1).
func (s *Source) Uniform01() (float64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, &ferrors.CryptographicError{Detail: "failed to read secure random bytes", Cause: err}
	}
	// 53 bits of entropy, matching float64's mantissa width.
	v := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(v) / (1 << 53), nil
}

// StandardNormal returns a value drawn from N(0, 1) via the Box-Muller
// transform.
func (s *Source) StandardNormal() (float64, error) {
	u1, err := s.nonZeroUniform01()
	if err != nil {
		return 0, err
	}
	u2, err := s.Uniform01()
	if err != nil {
		return 0, err
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2), nil
}

// nonZeroUniform01 resamples until it finds a value in (0, 1), since
// StandardNormal's log(u1) is undefined at 0.
func (s *Source) nonZeroUniform01() (float64, error) {
	for {
		u, err := s.Uniform01()
		if err != nil {
			return 0, err
		}
		if u > 0 {
			return u, nil
		}
	}
}

// Laplace draws a sample from the Laplace distribution with location 0 and
// scale b, via the inverse-CDF trick: if U is uniform on (-1/2, 1/2), then
// -b*sign(U)*ln(1-2|U|) is Laplace(0, b).
func (s *Source) Laplace(b float64) (float64, error) {
	if b <= 0 {
		return 0, &ferrors.InvalidInputError{Detail: "laplace scale must be positive"}
	}
	u, err := s.nonZeroUniform01()
	if err != nil {
		return 0, err
	}
	shifted := u - 0.5 // now uniform on (-0.5, 0.5)
	if shifted == 0 {
		shifted = 1e-15
	}
	sign := 1.0
	if shifted < 0 {
		sign = -1.0
	}
	return -b * sign * math.Log(1-2*math.Abs(shifted)), nil
}

// Gaussian draws a sample from N(0, sigma^2).
func (s *Source) Gaussian(sigma float64) (float64, error) {
	if sigma <= 0 {
		return 0, &ferrors.InvalidInputError{Detail: "gaussian sigma must be positive"}
	}
	z, err := s.StandardNormal()
	if err != nil {
		return 0, err
	}
	return z * sigma, nil
}

// IntRange returns a uniformly distributed integer offset in [-n, n]. The
// DateShift processor does not use it: its offsets come from a keyed HMAC.
func (s *Source) IntRange(n int) (int, error) {
	if n <= 0 {
		return 0, &ferrors.InvalidInputError{Detail: "range must be positive"}
	}
	u, err := s.Uniform01()
	if err != nil {
		return 0, err
	}
	span := 2*n + 1
	return int(u*float64(span)) - n, nil
}
