// Copyright 2024 The Erigon Authors
// (original work)
// Copyright 2025 The Opening Explorer Authors
// (modifications)
// This file is part of the opening explorer.
//
// The opening explorer is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The opening explorer is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the opening explorer. If not, see <http://www.gnu.org/licenses/>.

package math

import "math/bits"

// SafeAdd returns x+y and checks for overflow.
func SafeAdd(x, y uint64) (uint64, bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}

// SaturatingAdd returns x+y, clamped to the maximum on overflow.
func SaturatingAdd(x, y uint64) uint64 {
	sum, overflow := SafeAdd(x, y)
	if overflow {
		return 1<<64 - 1
	}
	return sum
}
