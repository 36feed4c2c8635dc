// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package bank

import "testing"

func TestSize(t *testing.T) {
	rb := &RegisterBank{
		DO: make([]bool, 8),
		DI: make([]bool, 4),
		AI: make([]uint16, 2),
		AO: make([]uint16, 6),
	}
	cases := []struct {
		r    Region
		want int
	}{
		{RegionDO, 8},
		{RegionDI, 4},
		{RegionAI, 2},
		{RegionAO, 6},
		{Region(99), 0},
	}
	for _, c := range cases {
		if got := rb.Size(c.r); got != c.want {
			t.Errorf("Size(%v) = %d, want %d", c.r, got, c.want)
		}
	}
}

func TestInRange(t *testing.T) {
	rb := &RegisterBank{AO: make([]uint16, 10)}
	cases := []struct {
		start, quantity uint16
		want            bool
	}{
		{0, 10, true},
		{0, 11, false},
		{9, 1, true},
		{10, 1, false},
		{0, 0, false},
		{5, 5, true},
		{5, 6, false},
	}
	for _, c := range cases {
		if got := rb.InRange(RegionAO, c.start, c.quantity); got != c.want {
			t.Errorf("InRange(%d, %d) = %v, want %v", c.start, c.quantity, got, c.want)
		}
	}
}

func TestInRangeSingle(t *testing.T) {
	rb := &RegisterBank{DO: make([]bool, 4)}
	if !rb.InRangeSingle(RegionDO, 3) {
		t.Error("InRangeSingle(3) on a 4-element region should fit")
	}
	if rb.InRangeSingle(RegionDO, 4) {
		t.Error("InRangeSingle(4) on a 4-element region should not fit")
	}
}
