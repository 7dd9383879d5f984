// Copyright 2025 The Opening Explorer Authors
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

package model

import "fmt"

// Variant tags the rule set a position belongs to. It is part of every
// personal key, so positions from different variants never alias even
// when their zobrist hashes collide.
type Variant uint8

const (
	VariantStandard Variant = iota
	VariantChess960
	VariantKingOfTheHill
	VariantThreeCheck
	VariantAntichess
	VariantAtomic
	VariantHorde
	VariantRacingKings
	VariantCrazyhouse
)

// VariantFromName maps the upstream variant names. Positions from
// custom setups ("fromPosition") share the standard rule set.
func VariantFromName(name string) (Variant, error) {
	switch name {
	case "standard", "fromPosition":
		return VariantStandard, nil
	case "chess960":
		return VariantChess960, nil
	case "kingOfTheHill":
		return VariantKingOfTheHill, nil
	case "threeCheck":
		return VariantThreeCheck, nil
	case "antichess":
		return VariantAntichess, nil
	case "atomic":
		return VariantAtomic, nil
	case "horde":
		return VariantHorde, nil
	case "racingKings":
		return VariantRacingKings, nil
	case "crazyhouse":
		return VariantCrazyhouse, nil
	}
	return 0, fmt.Errorf("invalid variant: %q", name)
}

func (v Variant) String() string {
	switch v {
	case VariantStandard:
		return "standard"
	case VariantChess960:
		return "chess960"
	case VariantKingOfTheHill:
		return "kingOfTheHill"
	case VariantThreeCheck:
		return "threeCheck"
	case VariantAntichess:
		return "antichess"
	case VariantAtomic:
		return "atomic"
	case VariantHorde:
		return "horde"
	case VariantRacingKings:
		return "racingKings"
	case VariantCrazyhouse:
		return "crazyhouse"
	}
	return fmt.Sprintf("Variant(%d)", uint8(v))
}

// StandardMoves reports whether games of this variant can be replayed
// with the standard-rules move engine.
func (v Variant) StandardMoves() bool {
	switch v {
	case VariantStandard, VariantChess960, VariantKingOfTheHill, VariantThreeCheck:
		return true
	}
	return false
}
