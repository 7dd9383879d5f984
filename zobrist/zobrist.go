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

// Package zobrist fingerprints chess positions with 128 bit hashes.
// Keys are derived from a fixed seed: hashes are persisted in storage
// keys and must be stable across processes and releases.
package zobrist

import (
	"github.com/notnil/chess"

	"github.com/k2052/lila-openingexplorer/model"
)

var (
	pieceKeys  [2][6][64]model.ZobristHash
	turnKey    model.ZobristHash
	castleKeys [2][2]model.ZobristHash
	epFileKeys [8]model.ZobristHash
)

func splitmix64(x *uint64) uint64 {
	*x += 0x9e3779b97f4a7c15
	z := *x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func init() {
	state := uint64(0x50e3a5c1d2b94f07)
	next := func() model.ZobristHash {
		return model.ZobristHash{Hi: splitmix64(&state), Lo: splitmix64(&state)}
	}
	for color := range pieceKeys {
		for piece := range pieceKeys[color] {
			for sq := range pieceKeys[color][piece] {
				pieceKeys[color][piece][sq] = next()
			}
		}
	}
	turnKey = next()
	for color := range castleKeys {
		for side := range castleKeys[color] {
			castleKeys[color][side] = next()
		}
	}
	for file := range epFileKeys {
		epFileKeys[file] = next()
	}
}

func colorIndex(c chess.Color) int {
	if c == chess.White {
		return 0
	}
	return 1
}

// King..Pawn are 1..6 in notnil/chess.
func pieceIndex(t chess.PieceType) int {
	return int(t) - 1
}

func xorInto(h *model.ZobristHash, k model.ZobristHash) {
	h.Hi ^= k.Hi
	h.Lo ^= k.Lo
}

// HashPosition fingerprints the position: piece placement, side to
// move, castling rights, and en passant file. Move counters are
// excluded, so a repeated position hashes identically.
func HashPosition(pos *chess.Position) model.ZobristHash {
	var h model.ZobristHash

	board := pos.Board()
	for sq := 0; sq < 64; sq++ {
		piece := board.Piece(chess.Square(sq))
		if piece == chess.NoPiece {
			continue
		}
		xorInto(&h, pieceKeys[colorIndex(piece.Color())][pieceIndex(piece.Type())][sq])
	}

	if pos.Turn() == chess.Black {
		xorInto(&h, turnKey)
	}

	rights := pos.CastleRights()
	if rights.CanCastle(chess.White, chess.KingSide) {
		xorInto(&h, castleKeys[0][0])
	}
	if rights.CanCastle(chess.White, chess.QueenSide) {
		xorInto(&h, castleKeys[0][1])
	}
	if rights.CanCastle(chess.Black, chess.KingSide) {
		xorInto(&h, castleKeys[1][0])
	}
	if rights.CanCastle(chess.Black, chess.QueenSide) {
		xorInto(&h, castleKeys[1][1])
	}

	if ep := pos.EnPassantSquare(); ep != chess.NoSquare {
		xorInto(&h, epFileKeys[int(ep.File())])
	}

	return h
}
