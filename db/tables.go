// Copyright 2021 The Erigon Authors
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

package db

// The store is a single pebble keyspace. Key families are separated by
// a leading table byte; the merge operator dispatches on it.
const (
	// Personal entries
	// key - user_hash_u64_be + color + variant + zobrist_u128_le + month_u16_be
	// value - PersonalEntry merge stream (concatenated chunks, compacted on merge)
	TblPersonal byte = 'p'

	// Lichess-wide entries
	// key - variant + zobrist_u128_le + month_u16_be
	// value - LichessEntry merge stream
	// Written by the bulk ingest path, not by the personal indexer.
	TblLichess byte = 'l'

	// Game info
	// key - game_id_u48_le
	// value - GameInfo (indexed flags OR together on merge)
	TblGameInfo byte = 'g'

	// Player status
	// key - user_id (raw, canonical lowercase)
	// value - PersonalStatus (plain put, never merged)
	TblPlayerStatus byte = 's'
)

// Tables lists all key families, for tooling and tests.
var Tables = []byte{TblPersonal, TblLichess, TblGameInfo, TblPlayerStatus}
