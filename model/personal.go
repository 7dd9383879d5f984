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

// The entry formats are incremental: persisting another observation of
// the same key appends the bytes of a single-game entry to whatever is
// stored, and reading folds all appended chunks back into one
// aggregate. ExtendFromReader consumes chunks until EOF; Write emits a
// compacted chunk that the reader reproduces exactly, so one
// compaction is a fixed point.
//
// Game references are numbered by a monotone game index. Each appended
// chunk occupies a fresh index range (deltas are relative to the
// aggregate's max index at the time the chunk is read), which is what
// lets the writer prune all but the most recent references per group
// while keeping the counts exact.

import (
	"bytes"
	"io"
	"sort"
)

// MaxPersonalGames bounds the game references retained per
// (speed, mode) group of a personal entry.
const MaxPersonalGames = 8

// GameRef is a sample game reference within a group.
type GameRef struct {
	Idx  uint64
	Game GameId
}

func containsGame(refs []GameRef, id GameId) bool {
	for _, ref := range refs {
		if ref.Game == id {
			return true
		}
	}
	return false
}

// PersonalGroup is the leaf aggregate of a personal entry.
type PersonalGroup struct {
	Stats Stats
	Games []GameRef
}

func (g PersonalGroup) isEmpty() bool {
	return len(g.Games) == 0 && g.Stats.IsEmpty()
}

type personalHeader struct {
	speed    Speed // zero marks the end of a sub-entry
	mode     Mode
	numGames int
}

// Header byte: speed in bits 0..2, mode in bit 3, min(numGames, 3) in
// bits 6..7. A count field of 3 means the exact count follows as a
// varint.
func writePersonalHeader(buf *bytes.Buffer, h personalHeader) {
	atLeast := h.numGames
	if atLeast > 3 {
		atLeast = 3
	}
	buf.WriteByte(byte(h.speed) | byte(h.mode)<<3 | byte(atLeast)<<6)
	if h.numGames >= 3 {
		WriteUint(buf, uint64(h.numGames))
	}
}

func readPersonalHeader(r *bytes.Reader) (personalHeader, error) {
	n, err := r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return personalHeader{}, err
	}
	speed := Speed(n & 7)
	if speed == 0 {
		return personalHeader{}, nil
	}
	if speed > Correspondence {
		return personalHeader{}, errInvalidData
	}
	h := personalHeader{
		speed:    speed,
		mode:     Mode(n >> 3 & 1),
		numGames: int(n >> 6),
	}
	if h.numGames >= 3 {
		exact, err := ReadUint(r)
		if err != nil {
			return personalHeader{}, err
		}
		h.numGames = int(exact)
	}
	return h, nil
}

// PersonalEntry aggregates one player's observations of one position,
// keyed by move, then by speed and mode. The zero value is empty and
// ready for ExtendFromReader.
type PersonalEntry struct {
	subEntries map[Uci]*BySpeed[ByMode[PersonalGroup]]
	maxGameIdx uint64
}

func NewSinglePersonalEntry(uci Uci, speed Speed, mode Mode, game GameId, outcome Outcome, moverRating uint16) *PersonalEntry {
	e := &PersonalEntry{}
	group := e.group(uci, speed, mode)
	group.Stats = NewSingleStats(outcome, moverRating)
	group.Games = []GameRef{{Idx: 0, Game: game}}
	return e
}

func (e *PersonalEntry) group(uci Uci, speed Speed, mode Mode) *PersonalGroup {
	if e.subEntries == nil {
		e.subEntries = make(map[Uci]*BySpeed[ByMode[PersonalGroup]], 1)
	}
	sub, ok := e.subEntries[uci]
	if !ok {
		sub = &BySpeed[ByMode[PersonalGroup]]{}
		e.subEntries[uci] = sub
	}
	return sub.Get(speed).Get(mode)
}

// Group returns a copy of the leaf aggregate for inspection.
func (e *PersonalEntry) Group(uci Uci, speed Speed, mode Mode) PersonalGroup {
	if e.subEntries == nil || e.subEntries[uci] == nil {
		return PersonalGroup{}
	}
	return *e.subEntries[uci].Get(speed).Get(mode)
}

func (e *PersonalEntry) MaxGameIdx() uint64 {
	return e.maxGameIdx
}

func (e *PersonalEntry) sortedUcis() []Uci {
	ucis := make([]Uci, 0, len(e.subEntries))
	for uci := range e.subEntries {
		ucis = append(ucis, uci)
	}
	sort.Slice(ucis, func(i, j int) bool { return ucis[i].packed() < ucis[j].packed() })
	return ucis
}

// ForEach visits all non-empty groups in the deterministic write order.
func (e *PersonalEntry) ForEach(f func(uci Uci, speed Speed, mode Mode, group PersonalGroup)) {
	for _, uci := range e.sortedUcis() {
		sub := e.subEntries[uci]
		for _, speed := range AllSpeeds {
			for _, mode := range AllModes {
				group := sub.Get(speed).Get(mode)
				if !group.isEmpty() {
					f(uci, speed, mode, *group)
				}
			}
		}
	}
}

// ExtendFromReader folds one appended chunk into the aggregate,
// reading sub-entries until EOF. The chunk's game references occupy a
// fresh index range starting just past the aggregate's current
// maximum. A game id already present in a group is the same game
// re-observed through another chunk and is not referenced twice.
func (e *PersonalEntry) ExtendFromReader(r *bytes.Reader) error {
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
			header, err := readPersonalHeader(r)
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
			group := e.group(uci, header.speed, header.mode)
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

// keptGameRefs prunes references at or below the retention floor. A
// group with exactly one game keeps it even when the index has moved
// past it, so singletons survive compaction.
func keptGameRefs(games []GameRef, discardedIdx uint64) []GameRef {
	if len(games) == 1 {
		return games
	}
	var kept []GameRef
	for _, ref := range games {
		if ref.Idx > discardedIdx {
			kept = append(kept, ref)
		}
	}
	return kept
}

// Write emits one compacted chunk. Per group, only references from the
// most recent MaxPersonalGames index range survive, except that a
// group holding exactly one game always keeps it. Stats are always
// preserved.
//
// Emitted deltas are relative to the smallest surviving index, so a
// round trip through ExtendFromReader translates every index by the
// same constant. Pruning decisions depend only on index differences,
// which makes a second compaction reproduce the first byte for byte.
func (e *PersonalEntry) Write(buf *bytes.Buffer) {
	var discardedIdx uint64
	if e.maxGameIdx > MaxPersonalGames {
		discardedIdx = e.maxGameIdx - MaxPersonalGames
	}

	floor := uint64(1<<64 - 1)
	for _, sub := range e.subEntries {
		for _, speed := range AllSpeeds {
			for _, mode := range AllModes {
				for _, ref := range keptGameRefs(sub.Get(speed).Get(mode).Games, discardedIdx) {
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
			for _, mode := range AllModes {
				group := sub.Get(speed).Get(mode)
				kept := keptGameRefs(group.Games, discardedIdx)

				if len(kept) == 0 && group.Stats.IsEmpty() {
					continue
				}

				writePersonalHeader(buf, personalHeader{
					speed:    speed,
					mode:     mode,
					numGames: len(kept),
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
