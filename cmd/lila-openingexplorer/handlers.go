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

package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/notnil/chess"

	"github.com/k2052/lila-openingexplorer/db"
	"github.com/k2052/lila-openingexplorer/indexer"
	"github.com/k2052/lila-openingexplorer/model"
	"github.com/k2052/lila-openingexplorer/zobrist"
)

// handleIndex triggers an indexing run. Responds 202 when a run is
// queued or already in flight, 204 when no run was queued: the player
// was indexed too recently, or the actor's queue is full.
// With ?wait the response is delayed until the run completes.
func handleIndex(stub *indexer.IndexerStub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := model.UserIdFromName(chi.URLParam(r, "user"))
		done := stub.IndexPlayer(user)
		if done == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.URL.Query().Has("wait") {
			select {
			case <-done:
				w.WriteHeader(http.StatusOK)
			case <-r.Context().Done():
			}
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

type moveStatsResponse struct {
	Uci   string   `json:"uci"`
	White uint64   `json:"white"`
	Draws uint64   `json:"draws"`
	Black uint64   `json:"black"`
	Games []string `json:"games"`
}

// handlePersonal reads one player's aggregate for one position and
// month. No query planning: exactly one key is read.
func handlePersonal(database *db.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		user := model.UserIdFromName(query.Get("player"))
		if user == "" {
			http.Error(w, "missing player", http.StatusBadRequest)
			return
		}
		color, err := model.ColorFromName(query.Get("color"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		month, err := model.ParseMonth(query.Get("month"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		variant := model.VariantStandard
		if name := query.Get("variant"); name != "" {
			if variant, err = model.VariantFromName(name); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		pos := chess.NewGame().Position()
		if fen := query.Get("fen"); fen != "" {
			fenOpt, err := chess.FEN(fen)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			pos = chess.NewGame(fenOpt).Position()
		}

		builder := model.NewPersonalKeyBuilder(user, color)
		key := builder.WithZobrist(variant, zobrist.HashPosition(pos)).WithMonth(month)

		entry, err := database.GetPersonal(key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		byUci := make(map[model.Uci]*moveStatsResponse)
		var moves []*moveStatsResponse
		entry.ForEach(func(uci model.Uci, _ model.Speed, _ model.Mode, group model.PersonalGroup) {
			stats, ok := byUci[uci]
			if !ok {
				stats = &moveStatsResponse{Uci: uci.String()}
				byUci[uci] = stats
				moves = append(moves, stats)
			}
			stats.White += group.Stats.White
			stats.Draws += group.Stats.Draws
			stats.Black += group.Stats.Black
			for _, ref := range group.Games {
				stats.Games = append(stats.Games, ref.Game.String())
			}
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Moves []*moveStatsResponse `json:"moves"`
		}{Moves: moves})
	}
}
