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

// Outcome of a terminated game.
type Outcome uint8

const (
	OutcomeDraw Outcome = iota
	OutcomeWhiteWins
	OutcomeBlackWins
)

// OutcomeFromWinner maps an optional winning color to an outcome.
func OutcomeFromWinner(winner *Color) Outcome {
	if winner == nil {
		return OutcomeDraw
	}
	if *winner == White {
		return OutcomeWhiteWins
	}
	return OutcomeBlackWins
}

// Winner returns the winning color, if any.
func (o Outcome) Winner() (Color, bool) {
	switch o {
	case OutcomeWhiteWins:
		return White, true
	case OutcomeBlackWins:
		return Black, true
	}
	return 0, false
}

func (o Outcome) String() string {
	switch o {
	case OutcomeWhiteWins:
		return "1-0"
	case OutcomeBlackWins:
		return "0-1"
	}
	return "1/2-1/2"
}
