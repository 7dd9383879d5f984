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
)

type GameInfoPlayer struct {
	Name   string
	Rating uint16 // zero when unknown
}

// GameInfo is the persisted per-game summary. The Indexed flags record
// which side's personal index has already absorbed the game; both
// index passes merge into the same record.
type GameInfo struct {
	Winner  Outcome
	Speed   Speed
	Rated   bool
	Month   Month
	Players ByColor[GameInfoPlayer]
	Indexed ByColor[bool]
}

// MergeFrom combines a later observation of the same game. The Indexed
// flags accumulate; all other fields are first-writer-wins, which is
// idempotent because both sides describe the same game.
func (g *GameInfo) MergeFrom(o *GameInfo) {
	g.Indexed.White = g.Indexed.White || o.Indexed.White
	g.Indexed.Black = g.Indexed.Black || o.Indexed.Black
}

func writeGameInfoPlayer(buf *bytes.Buffer, p GameInfoPlayer) {
	WriteUint(buf, uint64(p.Rating))
	WriteUint(buf, uint64(len(p.Name)))
	buf.WriteString(p.Name)
}

func readGameInfoPlayer(r *bytes.Reader) (GameInfoPlayer, error) {
	rating, err := ReadUint(r)
	if err != nil {
		return GameInfoPlayer{}, err
	}
	nameLen, err := ReadUint(r)
	if err != nil {
		return GameInfoPlayer{}, err
	}
	if nameLen > uint64(r.Len()) {
		return GameInfoPlayer{}, errInvalidData
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return GameInfoPlayer{}, err
	}
	return GameInfoPlayer{Name: string(name), Rating: uint16(rating)}, nil
}

func (g *GameInfo) Write(buf *bytes.Buffer) {
	buf.WriteByte(byte(g.Speed))
	buf.WriteByte(byte(ModeFromRated(g.Rated)))
	buf.WriteByte(byte(g.Winner))
	WriteUint(buf, uint64(g.Month))
	var indexed byte
	if g.Indexed.White {
		indexed |= 1
	}
	if g.Indexed.Black {
		indexed |= 2
	}
	buf.WriteByte(indexed)
	writeGameInfoPlayer(buf, g.Players.White)
	writeGameInfoPlayer(buf, g.Players.Black)
}

func ReadGameInfo(r *bytes.Reader) (*GameInfo, error) {
	speed, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	mode, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	winner, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if Speed(speed) == 0 || Speed(speed) > Correspondence || winner > byte(OutcomeBlackWins) {
		return nil, errInvalidData
	}
	month, err := ReadUint(r)
	if err != nil {
		return nil, err
	}
	m, err := MonthFromUint16(uint16(month))
	if err != nil {
		return nil, errInvalidData
	}
	indexed, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	white, err := readGameInfoPlayer(r)
	if err != nil {
		return nil, err
	}
	black, err := readGameInfoPlayer(r)
	if err != nil {
		return nil, err
	}
	return &GameInfo{
		Winner:  Outcome(winner),
		Speed:   Speed(speed),
		Rated:   Mode(mode) == Rated,
		Month:   m,
		Players: ByColor[GameInfoPlayer]{White: white, Black: black},
		Indexed: ByColor[bool]{White: indexed&1 != 0, Black: indexed&2 != 0},
	}, nil
}
