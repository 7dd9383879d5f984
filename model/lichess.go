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
	"io"
	"sort"
)

// MaxLichessGames bounds the game references retained per
// (speed, rating group) group of a lichess-wide entry.
const MaxLichessGames = 15

// LichessGroup is the leaf aggregate of a lichess-wide entry.
type LichessGroup struct {
	Stats Stats
	Games []GameRef
}

func (g LichessGroup) isEmpty() bool {
	return len(g.Games) == 0 && g.Stats.IsEmpty()
}

type lichessHeader struct {
	speed       Speed // zero marks the end of a sub-entry
	ratingGroup RatingGroup
	numGames    int
}

// Header byte: speed in bits 0..2, rating group in bits 3..5,
// min(numGames, 3) in bits 6..7. A count field of 3 means the exact
// count follows as a varint.
func writeLichessHeader(buf *bytes.Buffer, h lichessHeader) {
	atLeast := h.numGames
	if atLeast > 3 {
		atLeast = 3
	}
	buf.WriteByte(byte(h.speed) | byte(h.ratingGroup)<<3 | byte(atLeast)<<6)
	if h.numGames >= 3 {
		WriteUint(buf, uint64(h.numGames))
	}
}

func readLichessHeader(r *bytes.Reader) (lichessHeader, error) {
	n, err := r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return lichessHeader{}, err
	}
	speed := Speed(n & 7)
	if speed == 0 {
		return lichessHeader{}, nil
	}
	if speed > Correspondence {
		return lichessHeader{}, errInvalidData
	}
	h := lichessHeader{
		speed:       speed,
		ratingGroup: RatingGroup(n >> 3 & 7),
		numGames:    int(n >> 6),
	}
	if h.numGames >= 3 {
		exact, err := ReadUint(r)
		if err != nil {
			return lichessHeader{}, err
		}
		h.numGames = int(exact)
	}
	return h, nil
}

// LichessEntry aggregates the site-wide observations of one position,
// keyed by move, then by speed and rating group. The zero value is
// empty and ready for ExtendFromReader.
type LichessEntry struct {
	subEntries map[Uci]*BySpeed[ByRatingGroup[LichessGroup]]
	maxGameIdx uint64
}

func NewSingleLichessEntry(uci Uci, speed Speed, game GameId, outcome Outcome, moverRating, opponentRating uint16) *LichessEntry {
	e := &LichessEntry{}
	group := e.group(uci, speed, SelectRatingGroup(moverRating, opponentRating))
	group.Stats = NewSingleStats(outcome, moverRating)
	group.Games = []GameRef{{Idx: 0, Game: game}}
	return e
}

func (e *LichessEntry) group(uci Uci, speed Speed, rg RatingGroup) *LichessGroup {
	if e.subEntries == nil {
		e.subEntries = make(map[Uci]*BySpeed[ByRatingGroup[LichessGroup]], 1)
	}
	sub, ok := e.subEntries[uci]
	if !ok {
		sub = &BySpeed[ByRatingGroup[LichessGroup]]{}
		e.subEntries[uci] = sub
	}
	return sub.Get(speed).Get(rg)
}

// Group returns a copy of the leaf aggregate for inspection.
func (e *LichessEntry) Group(uci Uci, speed Speed, rg RatingGroup) LichessGroup {
	if e.subEntries == nil || e.subEntries[uci] == nil {
		return LichessGroup{}
	}
	return *e.subEntries[uci].Get(speed).Get(rg)
}

func (e *LichessEntry) MaxGameIdx() uint64 {
	return e.maxGameIdx
}

func (e *LichessEntry) sortedUcis() []Uci {
	ucis := make([]Uci, 0, len(e.subEntries))
	for uci := range e.subEntries {
		ucis = append(ucis, uci)
	}
	sort.Slice(ucis, func(i, j int) bool { return ucis[i].packed() < ucis[j].packed() })
	return ucis
}

// ForEach visits all non-empty groups in the deterministic write order.
func (e *LichessEntry) ForEach(f func(uci Uci, speed Speed, rg RatingGroup, group LichessGroup)) {
	for _, uci := range e.sortedUcis() {
		sub := e.subEntries[uci]
		for _, speed := range AllSpeeds {
			for _, rg := range AllRatingGroups {
				group := sub.Get(speed).Get(rg)
				if !group.isEmpty() {
					f(uci, speed, rg, *group)
				}
			}
		}
	}
}

// ExtendFromReader folds one appended chunk into the aggregate,
// reading sub-entries until EOF. The chunk's game references occupy a
// fresh index range starting just past the aggregate's current
// maximum.
func (e *LichessEntry) ExtendFromReader(r *bytes.Reader) error {
	baseGameIdx := e.maxGameIdx + 1

	for {
		uci, err := ReadUci(r)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		for {
			header, err := readLichessHeader(r)
			if err != nil {
				return err
			}
			if header.speed == 0 {
				break
			}
			stats, err := ReadStats(r)
			if err != nil {
				return err
			}
			group := e.group(uci, header.speed, header.ratingGroup)
			group.Stats.Add(stats)
			for i := 0; i < header.numGames; i++ {
				delta, err := ReadUint(r)
				if err != nil {
					return err
				}
				game, err := ReadGameId(r)
				if err != nil {
					return err
				}
				gameIdx := baseGameIdx + delta
				if gameIdx > e.maxGameIdx {
					e.maxGameIdx = gameIdx
				}
				if !containsGame(group.Games, game) {
					group.Games = append(group.Games, GameRef{Idx: gameIdx, Game: game})
				}
			}
		}
	}
}

// Write emits one compacted chunk. Per group, only references from the
// most recent MaxLichessGames index range of the whole entry survive,
// except that a group holding exactly one game always keeps it. Stats
// are always preserved.
//
// Emitted deltas are relative to the smallest surviving index, so a
// round trip through ExtendFromReader translates every index by the
// same constant and a second compaction reproduces the first byte for
// byte.
func (e *LichessEntry) Write(buf *bytes.Buffer) {
	var discardedIdx uint64
	if e.maxGameIdx > MaxLichessGames {
		discardedIdx = e.maxGameIdx - MaxLichessGames
	}

	floor := uint64(1<<64 - 1)
	for _, sub := range e.subEntries {
		for _, speed := range AllSpeeds {
			for _, rg := range AllRatingGroups {
				for _, ref := range keptGameRefs(sub.Get(speed).Get(rg).Games, discardedIdx) {
					if ref.Idx < floor {
						floor = ref.Idx
					}
				}
			}
		}
	}

	for _, uci := range e.sortedUcis() {
		WriteUci(buf, uci)

		sub := e.subEntries[uci]
		for _, speed := range AllSpeeds {
			for _, rg := range AllRatingGroups {
				group := sub.Get(speed).Get(rg)
				kept := keptGameRefs(group.Games, discardedIdx)

				if len(kept) == 0 && group.Stats.IsEmpty() {
					continue
				}

				writeLichessHeader(buf, lichessHeader{
					speed:       speed,
					ratingGroup: rg,
					numGames:    len(kept),
				})
				group.Stats.Write(buf)
				for _, ref := range kept {
					WriteUint(buf, ref.Idx-floor)
					WriteGameId(buf, ref.Game)
				}
			}
		}

		buf.WriteByte(0) // end of sub-entry
	}
}
