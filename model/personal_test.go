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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func encodePersonal(e *PersonalEntry) []byte {
	var buf bytes.Buffer
	e.Write(&buf)
	return buf.Bytes()
}

// decodePersonal folds chunks the way the merge operator does: one
// ExtendFromReader call per operand.
type personalTestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
	FailNow()
}

func decodePersonal(t personalTestingT, chunks ...[]byte) *PersonalEntry {
	t.Helper()
	e := new(PersonalEntry)
	for _, chunk := range chunks {
		require.NoError(t, e.ExtendFromReader(bytes.NewReader(chunk)))
	}
	return e
}

func mustGameId(t testing.TB, s string) GameId {
	t.Helper()
	id, err := NewGameId(s)
	require.NoError(t, err)
	return id
}

func TestPersonalEntryRoundTrip(t *testing.T) {
	uci := Uci{From: 12, To: 28}
	entry := NewSinglePersonalEntry(uci, Blitz, Rated, mustGameId(t, "abcd1234"), OutcomeDraw, 1850)

	first := encodePersonal(entry)
	second := encodePersonal(decodePersonal(t, first))
	require.Equal(t, first, second)

	group := decodePersonal(t, first).Group(uci, Blitz, Rated)
	require.Equal(t, Stats{Draws: 1, RatingSum: 1850}, group.Stats)
	require.Len(t, group.Games, 1)
	require.Equal(t, mustGameId(t, "abcd1234"), group.Games[0].Game)
}

func TestPersonalEntryMergeAppends(t *testing.T) {
	uci := Uci{From: 12, To: 28}
	chunks := [][]byte{
		encodePersonal(NewSinglePersonalEntry(uci, Blitz, Rated, mustGameId(t, "game0001"), OutcomeWhiteWins, 1800)),
		encodePersonal(NewSinglePersonalEntry(uci, Blitz, Rated, mustGameId(t, "game0002"), OutcomeBlackWins, 1810)),
		encodePersonal(NewSinglePersonalEntry(uci, Blitz, Rated, mustGameId(t, "game0003"), OutcomeDraw, 1790)),
	}

	entry := decodePersonal(t, chunks...)
	group := entry.Group(uci, Blitz, Rated)
	require.Equal(t, Stats{White: 1, Draws: 1, Black: 1, RatingSum: 5400}, group.Stats)
	require.Len(t, group.Games, 3)

	// Later chunks occupy fresh index ranges.
	require.Equal(t, uint64(3), entry.MaxGameIdx())
}

func TestPersonalEntryAssociativity(t *testing.T) {
	ucis := []Uci{{From: 12, To: 28}, {From: 6, To: 21}}
	var chunks [][]byte
	for i := 0; i < 6; i++ {
		chunks = append(chunks, encodePersonal(NewSinglePersonalEntry(
			ucis[i%2],
			AllSpeeds[i%len(AllSpeeds)],
			Mode(i%2),
			mustGameId(t, fmt.Sprintf("game%04d", i)),
			Outcome(i%3),
			uint16(1500+i),
		)))
	}

	allAtOnce := encodePersonal(decodePersonal(t, chunks...))

	// Compact a prefix first, then continue folding.
	for split := 1; split < len(chunks); split++ {
		prefix := encodePersonal(decodePersonal(t, chunks[:split]...))
		regrouped := encodePersonal(decodePersonal(t, append([][]byte{prefix}, chunks[split:]...)...))
		require.Equal(t, allAtOnce, regrouped, "split at %d", split)
	}
}

func TestPersonalEntryIdempotentCompaction(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numChunks := rapid.IntRange(1, 40).Draw(t, "chunks")
		var chunks [][]byte
		for i := 0; i < numChunks; i++ {
			entry := NewSinglePersonalEntry(
				Uci{From: uint8(rapid.IntRange(0, 63).Draw(t, "from")), To: uint8(rapid.IntRange(0, 63).Draw(t, "to"))},
				AllSpeeds[rapid.IntRange(0, len(AllSpeeds)-1).Draw(t, "speed")],
				Mode(rapid.IntRange(0, 1).Draw(t, "mode")),
				GameId{n: rapid.Uint64Range(0, 218340105584895).Draw(t, "game")},
				Outcome(rapid.IntRange(0, 2).Draw(t, "outcome")),
				uint16(rapid.IntRange(0, 3500).Draw(t, "rating")),
			)
			chunks = append(chunks, encodePersonal(entry))
		}

		compacted := encodePersonal(decodePersonal(t, chunks...))
		recompacted := encodePersonal(decodePersonal(t, compacted))
		require.Equal(t, compacted, recompacted)
	})
}

func TestPersonalEntryRetentionBound(t *testing.T) {
	uci := Uci{From: 12, To: 28}
	var chunks [][]byte
	for i := 0; i < 20; i++ {
		chunks = append(chunks, encodePersonal(NewSinglePersonalEntry(
			uci, Blitz, Rated, mustGameId(t, fmt.Sprintf("game%04d", i)), OutcomeWhiteWins, 1850)))
	}

	compacted := encodePersonal(decodePersonal(t, chunks...))
	group := decodePersonal(t, compacted).Group(uci, Blitz, Rated)

	require.LessOrEqual(t, len(group.Games), MaxPersonalGames)
	require.Equal(t, uint64(20), group.Stats.White, "counts survive pruning")
	require.Equal(t, uint64(20*1850), group.Stats.RatingSum, "rating sums survive pruning")

	// The newest games are the ones kept.
	last := group.Games[len(group.Games)-1]
	require.Equal(t, mustGameId(t, "game0019"), last.Game)
}

func TestPersonalEntrySingletonSurvives(t *testing.T) {
	lone := Uci{From: 6, To: 21}
	busy := Uci{From: 12, To: 28}

	chunks := [][]byte{
		encodePersonal(NewSinglePersonalEntry(lone, Bullet, Casual, mustGameId(t, "lonely00"), OutcomeDraw, 1500)),
	}
	for i := 0; i < 20; i++ {
		chunks = append(chunks, encodePersonal(NewSinglePersonalEntry(
			busy, Blitz, Rated, mustGameId(t, fmt.Sprintf("game%04d", i)), OutcomeWhiteWins, 1850)))
	}

	compacted := encodePersonal(decodePersonal(t, chunks...))
	group := decodePersonal(t, compacted).Group(lone, Bullet, Casual)
	require.Len(t, group.Games, 1, "a group with exactly one game keeps it")
	require.Equal(t, mustGameId(t, "lonely00"), group.Games[0].Game)
}

func TestPersonalEntryDedupOnRead(t *testing.T) {
	uci := Uci{From: 12, To: 28}
	single := encodePersonal(NewSinglePersonalEntry(uci, Blitz, Rated, mustGameId(t, "abcd1234"), OutcomeDraw, 1850))

	entry := decodePersonal(t, single, single)
	group := entry.Group(uci, Blitz, Rated)
	require.Len(t, group.Games, 1, "the same game re-observed is referenced once")
	require.Equal(t, uint64(2), group.Stats.Draws)
}
