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

import (
	"bytes"

	"github.com/k2052/lila-openingexplorer/common/math"
)

// Stats is the commutative monoid under addition that the entry codecs
// aggregate. Counts are kept by winning color so that no mover
// perspective is needed when recording an observation.
type Stats struct {
	White     uint64
	Draws     uint64
	Black     uint64
	RatingSum uint64
}

func NewSingleStats(outcome Outcome, rating uint16) Stats {
	s := Stats{RatingSum: uint64(rating)}
	switch outcome {
	case OutcomeWhiteWins:
		s.White = 1
	case OutcomeBlackWins:
		s.Black = 1
	default:
		s.Draws = 1
	}
	return s
}

func (s *Stats) Add(o Stats) {
	s.White = math.SaturatingAdd(s.White, o.White)
	s.Draws = math.SaturatingAdd(s.Draws, o.Draws)
	s.Black = math.SaturatingAdd(s.Black, o.Black)
	s.RatingSum = math.SaturatingAdd(s.RatingSum, o.RatingSum)
}

func (s Stats) IsEmpty() bool {
	return s.White == 0 && s.Draws == 0 && s.Black == 0
}

func (s Stats) Total() uint64 {
	return s.White + s.Draws + s.Black
}

func (s Stats) Write(buf *bytes.Buffer) {
	WriteUint(buf, s.White)
	WriteUint(buf, s.Draws)
	WriteUint(buf, s.Black)
	WriteUint(buf, s.RatingSum)
}

func ReadStats(r *bytes.Reader) (Stats, error) {
	var s Stats
	var err error
	if s.White, err = ReadUint(r); err != nil {
		return Stats{}, err
	}
	if s.Draws, err = ReadUint(r); err != nil {
		return Stats{}, err
	}
	if s.Black, err = ReadUint(r); err != nil {
		return Stats{}, err
	}
	if s.RatingSum, err = ReadUint(r); err != nil {
		return Stats{}, err
	}
	return s, nil
}
