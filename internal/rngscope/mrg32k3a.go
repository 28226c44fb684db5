// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package rngscope

import (
	"encoding/binary"
	"fmt"
)

// L'Ecuyer's MRG32k3a combined multiple recursive generator.
const (
	m1   = 4294967087
	m2   = 4294944443
	a12  = 1403580
	a13n = 810728
	a21  = 527612
	a23n = 1370589
)

// Jump matrices advancing each component by 2^127 steps (one stream).
var (
	a1p127 = [3][3]uint64{
		{2427906178, 3580155704, 949770784},
		{226153695, 1230515664, 3580155704},
		{1988835001, 986791581, 1230515664},
	}
	a2p127 = [3][3]uint64{
		{1464411153, 277697599, 1610723613},
		{32183930, 1464411153, 1022607788},
		{2824425944, 32183930, 2093834863},
	}
)

// mrg32k3a implements math/rand/v2's Source. s1[0] and s2[0] are the oldest values.
type mrg32k3a struct {
	s1 [3]uint64
	s2 [3]uint64
}

func newMRG32k3a(seed uint64) *mrg32k3a {
	g := &mrg32k3a{}
	sm := seed
	for j := 0; j < 3; j++ {
		g.s1[j] = splitmix64(&sm) % m1
	}
	for j := 0; j < 3; j++ {
		g.s2[j] = splitmix64(&sm) % m2
	}
	// Neither component may be all zero
	if g.s1 == [3]uint64{} {
		g.s1[0] = 1
	}
	if g.s2 == [3]uint64{} {
		g.s2[0] = 1
	}
	return g
}

// next returns the next output in [1, m1].
func (g *mrg32k3a) next() uint64 {
	p1 := (a12*g.s1[1] + a13n*(m1-g.s1[0])) % m1
	g.s1[0], g.s1[1], g.s1[2] = g.s1[1], g.s1[2], p1

	p2 := (a21*g.s2[2] + a23n*(m2-g.s2[0])) % m2
	g.s2[0], g.s2[1], g.s2[2] = g.s2[1], g.s2[2], p2

	if p1 > p2 {
		return p1 - p2
	}
	return p1 - p2 + m1
}

// Uint64 packs two draws into one 64-bit value. Each 32-bit half is uniform on
// [0, m1-1], so the top 209 values of a half never occur and the others are
// over-represented by a relative 209/m1, about 5e-8. Floats and normals built
// from the packed value inherit a bias of that order, far below Monte Carlo error.
func (g *mrg32k3a) Uint64() uint64 {
	hi := g.next() - 1
	lo := g.next() - 1
	return hi<<32 | lo
}

// jump returns a copy advanced by 2^127 steps, the start of the next stream.
func (g *mrg32k3a) jump() *mrg32k3a {
	return &mrg32k3a{
		s1: matVecMod(a1p127, g.s1, m1),
		s2: matVecMod(a2p127, g.s2, m2),
	}
}

func (g *mrg32k3a) clone() *mrg32k3a {
	c := *g
	return &c
}

// All operands are below 2^32 so each product fits in a uint64.
func matVecMod(a [3][3]uint64, v [3]uint64, m uint64) [3]uint64 {
	var out [3]uint64
	for i := 0; i < 3; i++ {
		var acc uint64
		for j := 0; j < 3; j++ {
			acc = (acc + (a[i][j]%m)*(v[j]%m)%m) % m
		}
		out[i] = acc
	}
	return out
}

func (g *mrg32k3a) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 48)
	for _, v := range g.s1 {
		buf = binary.BigEndian.AppendUint64(buf, v)
	}
	for _, v := range g.s2 {
		buf = binary.BigEndian.AppendUint64(buf, v)
	}
	return buf, nil
}

func (g *mrg32k3a) UnmarshalBinary(data []byte) error {
	if len(data) != 48 {
		return fmt.Errorf("mrg32k3a: invalid state length %d", len(data))
	}
	for j := 0; j < 3; j++ {
		g.s1[j] = binary.BigEndian.Uint64(data[8*j:])
		g.s2[j] = binary.BigEndian.Uint64(data[24+8*j:])
	}
	return nil
}

// splitmix64 advances *state and returns the next output.
func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
