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

package db

import (
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/k2052/lila-openingexplorer/model"
)

func testDatabase(t *testing.T) *Database {
	t.Helper()
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	database, err := Open(t.TempDir(), 0, logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, database.Close()) })
	return database
}

func mustGameId(t *testing.T, s string) model.GameId {
	t.Helper()
	id, err := model.NewGameId(s)
	require.NoError(t, err)
	return id
}

func TestPlayerStatusPutGet(t *testing.T) {
	database := testDatabase(t)

	missing, err := database.GetPlayerStatus("alice")
	require.NoError(t, err)
	require.Nil(t, missing)

	status := &model.PersonalStatus{IndexedAt: 1700000000, LatestCreatedAt: 12345}
	require.NoError(t, database.PutPlayerStatus("alice", status))

	got, err := database.GetPlayerStatus("alice")
	require.NoError(t, err)
	require.Equal(t, status, got)
}

func TestMergePersonalAggregates(t *testing.T) {
	database := testDatabase(t)

	uci := model.Uci{From: 12, To: 28}
	builder := model.NewPersonalKeyBuilder("alice", model.White)
	key := builder.WithZobrist(model.VariantStandard, model.ZobristHash{Hi: 1, Lo: 2}).WithMonth(100)

	require.NoError(t, database.MergePersonal(key,
		model.NewSinglePersonalEntry(uci, model.Blitz, model.Rated, mustGameId(t, "game0001"), model.OutcomeWhiteWins, 1850)))
	require.NoError(t, database.MergePersonal(key,
		model.NewSinglePersonalEntry(uci, model.Blitz, model.Rated, mustGameId(t, "game0002"), model.OutcomeDraw, 1860)))

	entry, err := database.GetPersonal(key)
	require.NoError(t, err)
	group := entry.Group(uci, model.Blitz, model.Rated)
	require.Equal(t, model.Stats{White: 1, Draws: 1, RatingSum: 3710}, group.Stats)
	require.Len(t, group.Games, 2)

	// Another read reaches the same fixed point.
	again, err := database.GetPersonal(key)
	require.NoError(t, err)
	require.Equal(t, entry, again)
}

func TestMergePersonalDistinctKeys(t *testing.T) {
	database := testDatabase(t)

	uci := model.Uci{From: 12, To: 28}
	builder := model.NewPersonalKeyBuilder("alice", model.White)
	k1 := builder.WithZobrist(model.VariantStandard, model.ZobristHash{Lo: 1}).WithMonth(100)
	k2 := builder.WithZobrist(model.VariantStandard, model.ZobristHash{Lo: 2}).WithMonth(100)

	require.NoError(t, database.MergePersonal(k1,
		model.NewSinglePersonalEntry(uci, model.Blitz, model.Rated, mustGameId(t, "game0001"), model.OutcomeDraw, 1850)))

	entry, err := database.GetPersonal(k2)
	require.NoError(t, err)
	require.Equal(t, uint64(0), entry.MaxGameIdx())
	require.Equal(t, model.PersonalGroup{}, entry.Group(uci, model.Blitz, model.Rated))
}

func TestMergeGameInfoFlags(t *testing.T) {
	database := testDatabase(t)
	id := mustGameId(t, "abcd1234")

	missing, err := database.GetGameInfo(id)
	require.NoError(t, err)
	require.Nil(t, missing)

	info := &model.GameInfo{
		Winner: model.OutcomeDraw,
		Speed:  model.Blitz,
		Rated:  true,
		Month:  model.Month(2023*12 + 4),
		Players: model.ByColor[model.GameInfoPlayer]{
			White: model.GameInfoPlayer{Name: "Alice", Rating: 1850},
			Black: model.GameInfoPlayer{Name: "Bob", Rating: 1790},
		},
		Indexed: model.ByColor[bool]{White: true},
	}
	require.NoError(t, database.MergeGameInfo(id, info))

	other := *info
	other.Indexed = model.ByColor[bool]{Black: true}
	require.NoError(t, database.MergeGameInfo(id, &other))

	got, err := database.GetGameInfo(id)
	require.NoError(t, err)
	require.Equal(t, model.ByColor[bool]{White: true, Black: true}, got.Indexed)
	require.Equal(t, "Alice", got.Players.White.Name)
}

func TestMergeSurvivesReopen(t *testing.T) {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	dir := t.TempDir()

	uci := model.Uci{From: 12, To: 28}
	builder := model.NewPersonalKeyBuilder("alice", model.White)
	key := builder.WithZobrist(model.VariantStandard, model.ZobristHash{Hi: 9}).WithMonth(7)

	database, err := Open(dir, 0, logger)
	require.NoError(t, err)
	require.NoError(t, database.MergePersonal(key,
		model.NewSinglePersonalEntry(uci, model.Rapid, model.Casual, mustGameId(t, "game0001"), model.OutcomeBlackWins, 2000)))
	require.NoError(t, database.Close())

	database, err = Open(dir, 0, logger)
	require.NoError(t, err)
	defer database.Close()

	entry, err := database.GetPersonal(key)
	require.NoError(t, err)
	require.Equal(t, model.Stats{Black: 1, RatingSum: 2000}, entry.Group(uci, model.Rapid, model.Casual).Stats)
}
