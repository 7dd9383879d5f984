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

// Package indexer ingests players' game histories into the store.
//
// The stub is a router: it enforces at most one run per player
// system-wide, shards players across a pool of actors by a seeded
// hash, and hands out completion channels that late callers can
// subscribe to. Each actor owns a bounded inbox and drains one run at
// a time, so per-player processing is strictly sequential.
package indexer

import (
	"context"
	"errors"
	"hash/maphash"
	"sync"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/notnil/chess"

	"github.com/k2052/lila-openingexplorer/db"
	"github.com/k2052/lila-openingexplorer/model"
	"github.com/k2052/lila-openingexplorer/zobrist"
)

type IndexerOpt struct {
	Lila      string        // upstream base URL
	Bearer    string        // optional auth token
	Indexers  int           // actor count
	Refresh   time.Duration // re-index a known player after this long
	QueueSize int           // bounded inbox capacity per actor
}

func (o *IndexerOpt) defaults() {
	if o.Lila == "" {
		o.Lila = "https://lichess.org"
	}
	if o.Indexers < 1 {
		o.Indexers = 16
	}
	if o.Refresh <= 0 {
		o.Refresh = 24 * time.Hour
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 500
	}
}

type indexerMessage struct {
	user           model.UserId
	status         *model.PersonalStatus
	sinceCreatedAt uint64
}

type IndexerStub struct {
	db     *db.Database
	opt    IndexerOpt
	logger log.Logger

	// The seed is randomized at startup so the shard assignment of a
	// given user cannot be predicted from outside.
	seed maphash.Seed
	txs  []chan indexerMessage
	wg   sync.WaitGroup

	mu       sync.RWMutex
	indexing map[model.UserId]chan struct{}
}

// Spawn starts the actor pool and returns the stub. The context
// cancels in-flight upstream reads on shutdown; Close stops the pool.
func Spawn(ctx context.Context, database *db.Database, opt IndexerOpt, logger log.Logger) *IndexerStub {
	opt.defaults()
	s := &IndexerStub{
		db:       database,
		opt:      opt,
		logger:   logger,
		seed:     maphash.MakeSeed(),
		indexing: make(map[model.UserId]chan struct{}),
	}
	for idx := 0; idx < opt.Indexers; idx++ {
		tx := make(chan indexerMessage, opt.QueueSize)
		s.txs = append(s.txs, tx)
		actor := &indexerActor{
			idx:    idx,
			stub:   s,
			db:     database,
			lila:   newLila(opt, logger),
			logger: logger,
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			actor.run(ctx, tx)
		}()
	}
	return s
}

// Close stops accepting work and waits until the actors have drained
// their queues.
func (s *IndexerStub) Close() {
	for _, tx := range s.txs {
		close(tx)
	}
	s.wg.Wait()
}

// IndexPlayer requests an indexing run. It returns a channel that is
// closed when the player's run (this one or one already in flight)
// completes, or nil if there is nothing to do: the player was indexed
// too recently, or the responsible actor's queue is full.
//
// Store failures are not survivable and panic.
func (s *IndexerStub) IndexPlayer(user model.UserId) <-chan struct{} {
	// Subscribing to an in-flight run needs no write lock.
	s.mu.RLock()
	done, inFlight := s.indexing[user]
	s.mu.RUnlock()
	if inFlight {
		return done
	}

	status, err := s.db.GetPlayerStatus(user)
	if err != nil {
		panic(err)
	}
	if status == nil {
		status = &model.PersonalStatus{}
	}

	sinceCreatedAt, ok := status.MaybeRevisitOngoing()
	if !ok {
		sinceCreatedAt, ok = status.MaybeIndex(time.Now(), s.opt.Refresh)
	}
	if !ok {
		return nil // do not reindex so soon
	}

	shard := int(maphash.String(s.seed, string(user)) % uint64(len(s.txs)))

	s.mu.Lock()
	defer s.mu.Unlock()
	if done, inFlight := s.indexing[user]; inFlight {
		// Someone else queued the user while we were reading status.
		return done
	}

	select {
	case s.txs[shard] <- indexerMessage{user: user, status: status, sinceCreatedAt: sinceCreatedAt}:
		done := make(chan struct{})
		s.indexing[user] = done
		indexingPlayers.Inc()
		return done
	default:
		s.logger.Error("[indexer] not queuing because indexer queue is full", "shard", shard, "user", user)
		queueFullTotal.Inc()
		return nil
	}
}

// finish drops the single-flight entry and wakes all subscribers.
func (s *IndexerStub) finish(user model.UserId) {
	s.mu.Lock()
	done := s.indexing[user]
	delete(s.indexing, user)
	s.mu.Unlock()
	if done != nil {
		close(done)
		indexingPlayers.Dec()
	}
}

type indexerActor struct {
	idx    int
	stub   *IndexerStub
	db     *db.Database
	lila   *lila
	logger log.Logger
}

func (a *indexerActor) run(ctx context.Context, rx <-chan indexerMessage) {
	for msg := range rx {
		a.indexPlayer(ctx, msg.user, msg.status, msg.sinceCreatedAt)
		a.stub.finish(msg.user)
	}
}

func (a *indexerActor) indexPlayer(ctx context.Context, user model.UserId, status *model.PersonalStatus, sinceCreatedAt uint64) {
	a.logger.Info("[indexer] starting", "idx", a.idx, "user", user, "since", sinceCreatedAt)

	games, err := a.lila.userGames(ctx, user, sinceCreatedAt)
	if err != nil {
		if errors.Is(err, errUserNotFound) {
			a.logger.Warn("[indexer] did not find player", "user", user)
			runsTotal.WithLabelValues("not_found").Inc()
		} else {
			a.logger.Error("[indexer] request failed", "idx", a.idx, "user", user, "err", err)
			runsTotal.WithLabelValues("upstream_error").Inc()
		}
		return
	}
	defer games.Close()

	keys := model.NewByColor(func(c model.Color) model.PersonalKeyBuilder {
		return model.NewPersonalKeyBuilder(user, c)
	})

	numGames := 0
	for {
		game, err := games.Next()
		if err != nil {
			a.logger.Error("[indexer] skipping game", "user", user, "err", err)
			continue
		}
		if game == nil {
			break
		}

		a.indexGame(user, &keys, game, status)

		numGames++
		gamesProcessed.Inc()
		if numGames%1024 == 0 {
			a.logger.Info("[indexer] indexed games", "idx", a.idx, "user", user, "games", numGames)
		}
	}

	if ctx.Err() != nil {
		// Shutdown cut the stream short: the stored status is left as it
		// was, so the next start retries from the previous watermark.
		a.logger.Warn("[indexer] interrupted", "idx", a.idx, "user", user, "games", numGames)
		return
	}

	status.IndexedAt = uint64(time.Now().Unix())
	if err := a.db.PutPlayerStatus(user, status); err != nil {
		panic(err)
	}
	runsTotal.WithLabelValues("finished").Inc()
	a.logger.Info("[indexer] finished", "idx", a.idx, "user", user, "games", numGames)
}

func (a *indexerActor) indexGame(user model.UserId, keys *model.ByColor[model.PersonalKeyBuilder], game *Game, status *model.PersonalStatus) {
	// The upstream delivers games in ascending creation order, but the
	// watermark must survive an upstream that does not.
	if game.CreatedAt > status.LatestCreatedAt {
		status.LatestCreatedAt = game.CreatedAt
	}

	if game.Status.IsOngoing() {
		if status.RevisitOngoingCreatedAt == 0 {
			a.logger.Debug("[indexer] will revisit ongoing game eventually", "game", game.ID)
			status.RevisitOngoingCreatedAt = game.CreatedAt
		}
		return
	}
	if game.Status.IsUnindexable() {
		a.logger.Debug("[indexer] not indexing", "game", game.ID, "status", game.Status)
		return
	}

	// Anonymous and computer opponents have no user to index against.
	if game.Players.Any(func(p *Player) bool { return p.Name == "" }) {
		return
	}
	color, ok := game.Players.Find(func(p *Player) bool {
		return model.UserIdFromName(p.Name) == user
	})
	if !ok {
		a.logger.Error("[indexer] player did not play in game", "user", user, "game", game.ID)
		return
	}

	month := model.MonthFromMillis(game.LastMoveAt)
	outcome := model.OutcomeFromWinner(game.Winner)

	info, err := a.db.GetGameInfo(game.ID)
	if err != nil {
		panic(err)
	}
	if info != nil && *info.Indexed.Get(color) {
		a.logger.Debug("[indexer] already indexed", "game", game.ID, "color", color)
		return
	}

	if err := a.db.MergeGameInfo(game.ID, &model.GameInfo{
		Winner: outcome,
		Speed:  game.Speed,
		Rated:  game.Rated,
		Month:  month,
		Players: model.NewByColor(func(c model.Color) model.GameInfoPlayer {
			p := game.Players.Get(c)
			return model.GameInfoPlayer{Name: p.Name, Rating: p.Rating}
		}),
		Indexed: model.ByColor[bool]{White: color == model.White, Black: color == model.Black},
	}); err != nil {
		panic(err)
	}

	table := a.replay(game)

	moverRating := game.Players.Get(color).Rating
	for hash, uci := range table {
		key := keys.Get(color).WithZobrist(game.Variant, hash).WithMonth(month)
		entry := model.NewSinglePersonalEntry(uci, game.Speed, model.ModeFromRated(game.Rated), game.ID, outcome, moverRating)
		if err := a.db.MergePersonal(key, entry); err != nil {
			panic(err)
		}
	}
}

// replay walks the game and collects one (position, move) pair per
// distinct position. The table intentionally collapses repetitions: if
// a position recurs, only the move chosen on its last visit is kept,
// so a game that cycles cannot inflate the statistics.
func (a *indexerActor) replay(game *Game) map[model.ZobristHash]model.Uci {
	if !game.Variant.StandardMoves() {
		a.logger.Debug("[indexer] not replaying variant", "game", game.ID, "variant", game.Variant)
		return nil
	}

	pos, err := startingPosition(game)
	if err != nil {
		a.logger.Warn("[indexer] not indexing", "game", game.ID, "err", err)
		return nil
	}

	table := make(map[model.ZobristHash]model.Uci, len(game.Moves))
	for ply, san := range game.Moves {
		move, err := chess.AlgebraicNotation{}.Decode(pos, san)
		if err != nil {
			// Keep what was already replayed.
			a.logger.Warn("[indexer] cutting off", "game", game.ID, "ply", ply, "san", san, "err", err)
			break
		}
		table[zobrist.HashPosition(pos)] = uciFromMove(move)
		pos = pos.Update(move)
	}
	return table
}

func startingPosition(game *Game) (*chess.Position, error) {
	if game.InitialFen == "" {
		return chess.NewGame().Position(), nil
	}
	fen, err := chess.FEN(game.InitialFen)
	if err != nil {
		return nil, err
	}
	return chess.NewGame(fen).Position(), nil
}

func uciFromMove(m *chess.Move) model.Uci {
	u := model.Uci{From: uint8(m.S1()), To: uint8(m.S2())}
	switch m.Promo() {
	case chess.Knight:
		u.Role = model.RoleKnight
	case chess.Bishop:
		u.Role = model.RoleBishop
	case chess.Rook:
		u.Role = model.RoleRook
	case chess.Queen:
		u.Role = model.RoleQueen
	case chess.King:
		u.Role = model.RoleKing
	}
	return u
}
