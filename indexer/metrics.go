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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gamesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openingexplorer_indexer_games_total",
		Help: "Games pulled from the upstream feed across all runs.",
	})
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openingexplorer_indexer_runs_total",
		Help: "Indexing runs by result.",
	}, []string{"result"})
	queueFullTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openingexplorer_indexer_queue_full_total",
		Help: "Indexing requests rejected because a shard queue was full.",
	})
	indexingPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openingexplorer_indexer_players",
		Help: "Players with an indexing run queued or in progress.",
	})
)
