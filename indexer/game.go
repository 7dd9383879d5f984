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

package indexer

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/k2052/lila-openingexplorer/model"
)

// GameStatus is the upstream status name of a game.
type GameStatus string

// IsOngoing: the game is still being played and will be revisited.
func (s GameStatus) IsOngoing() bool {
	return s == "created" || s == "started"
}

// IsUnindexable: the game terminated without a result worth counting.
func (s GameStatus) IsUnindexable() bool {
	switch s {
	case "aborted", "noStart", "unknownFinish", "cheat":
		return true
	}
	return false
}

// Player is one side of an upstream game. Name is empty for anonymous
// and computer opponents.
type Player struct {
	Name   string
	Rating uint16
}

// Game is one parsed record of the upstream game feed.
type Game struct {
	ID         model.GameId
	CreatedAt  uint64 // ms since epoch
	LastMoveAt uint64 // ms since epoch
	Variant    model.Variant
	InitialFen string
	Players    model.ByColor[Player]
	Winner     *model.Color
	Speed      model.Speed
	Rated      bool
	Moves      []string // SAN
	Status     GameStatus
}

type playerJSON struct {
	User *struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	} `json:"user"`
	Rating uint16 `json:"rating"`
}

type gameJSON struct {
	ID         string `json:"id"`
	Rated      bool   `json:"rated"`
	Variant    string `json:"variant"`
	Speed      string `json:"speed"`
	CreatedAt  uint64 `json:"createdAt"`
	LastMoveAt uint64 `json:"lastMoveAt"`
	Status     string `json:"status"`
	Players    struct {
		White playerJSON `json:"white"`
		Black playerJSON `json:"black"`
	} `json:"players"`
	Winner     string `json:"winner"`
	InitialFen string `json:"initialFen"`
	Moves      string `json:"moves"`
}

func decodePlayer(p playerJSON) Player {
	out := Player{Rating: p.Rating}
	if p.User != nil {
		out.Name = p.User.Name
	}
	return out
}

func decodeGame(line []byte) (*Game, error) {
	var raw gameJSON
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}

	id, err := model.NewGameId(raw.ID)
	if err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	variant, err := model.VariantFromName(raw.Variant)
	if err != nil {
		return nil, fmt.Errorf("decode game %s: %w", raw.ID, err)
	}
	speed, err := model.SpeedFromName(raw.Speed)
	if err != nil {
		return nil, fmt.Errorf("decode game %s: %w", raw.ID, err)
	}

	var winner *model.Color
	if raw.Winner != "" {
		color, err := model.ColorFromName(raw.Winner)
		if err != nil {
			return nil, fmt.Errorf("decode game %s: %w", raw.ID, err)
		}
		winner = &color
	}

	var moves []string
	if raw.Moves != "" {
		moves = strings.Fields(raw.Moves)
	}

	return &Game{
		ID:         id,
		CreatedAt:  raw.CreatedAt,
		LastMoveAt: raw.LastMoveAt,
		Variant:    variant,
		InitialFen: raw.InitialFen,
		Players: model.ByColor[Player]{
			White: decodePlayer(raw.Players.White),
			Black: decodePlayer(raw.Players.Black),
		},
		Winner: winner,
		Speed:  speed,
		Rated:  raw.Rated,
		Moves:  moves,
		Status: GameStatus(raw.Status),
	}, nil
}
