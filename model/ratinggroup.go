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

// RatingGroup stratifies lichess-wide entries by the average of both
// players' ratings. Eight buckets, three bits on the wire.
type RatingGroup uint8

const (
	GroupLow RatingGroup = iota
	Group1600
	Group1800
	Group2000
	Group2200
	Group2500
	Group2800
	Group3200
)

var AllRatingGroups = [...]RatingGroup{
	GroupLow, Group1600, Group1800, Group2000,
	Group2200, Group2500, Group2800, Group3200,
}

// SelectRatingGroup buckets by the average of both ratings. The
// halves are averaged separately so the sum cannot overflow u16.
func SelectRatingGroup(moverRating, opponentRating uint16) RatingGroup {
	avg := moverRating/2 + opponentRating/2
	switch {
	case avg < 1600:
		return GroupLow
	case avg < 1800:
		return Group1600
	case avg < 2000:
		return Group1800
	case avg < 2200:
		return Group2000
	case avg < 2500:
		return Group2200
	case avg < 2800:
		return Group2500
	case avg < 3200:
		return Group2800
	default:
		return Group3200
	}
}

// ByRatingGroup holds one value per rating bucket.
type ByRatingGroup[T any] struct {
	GroupLow  T
	Group1600 T
	Group1800 T
	Group2000 T
	Group2200 T
	Group2500 T
	Group2800 T
	Group3200 T
}

func (b *ByRatingGroup[T]) Get(g RatingGroup) *T {
	switch g {
	case GroupLow:
		return &b.GroupLow
	case Group1600:
		return &b.Group1600
	case Group1800:
		return &b.Group1800
	case Group2000:
		return &b.Group2000
	case Group2200:
		return &b.Group2200
	case Group2500:
		return &b.Group2500
	case Group2800:
		return &b.Group2800
	default:
		return &b.Group3200
	}
}
