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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/notnil/chess"
	"github.com/stretchr/testify/require"

	"github.com/k2052/lila-openingexplorer/db"
	"github.com/k2052/lila-openingexplorer/model"
	"github.com/k2052/lila-openingexplorer/zobrist"
)

func testLogger() log.Logger {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	return logger
}

func testDatabase(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.Open(t.TempDir(), 0, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// fakeLila serves canned ND-JSON game feeds and can block a user's
// feed on a gate channel to keep a run in flight.
type fakeLila struct {
	srv *httptest.Server

	mu       sync.Mutex
	bodies   map[string]string
	gates    map[string]chan struct{}
	requests map[string]int
}

func newFakeLila(t *testing.T) *fakeLila {
	f := &fakeLila{
		bodies:   make(map[string]string),
		gates:    make(map[string]chan struct{}),
		requests: make(map[string]int),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := path.Base(r.URL.Path)
		f.mu.Lock()
		f.requests[user]++
		gate := f.gates[user]
		body, ok := f.bodies[user]
		f.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLila) serve(user, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[user] = body
}

// gate makes the user's next requests block until the returned channel
// is closed.
func (f *fakeLila) gate(user string) chan struct{} {
	release := make(chan struct{})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[user] = release
	return release
}

func (f *fakeLila) requestCount(user string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[user]
}

type fixtureGame struct {
	id          string
	white       string
	black       string
	whiteRating int
	blackRating int
	winner      string // "" for draw
	speed       string
	rated       bool
	moves       string
	status      string
	createdAt   uint64
	lastMoveAt  uint64
}

func (g fixtureGame) line() string {
	winner := ""
	if g.winner != "" {
		winner = fmt.Sprintf(`"winner":%q,`, g.winner)
	}
	return fmt.Sprintf(`{"id":%q,"rated":%t,"variant":"standard","speed":%q,`+
		`"createdAt":%d,"lastMoveAt":%d,"status":%q,`+
		`"players":{"white":{"user":{"name":%q},"rating":%d},"black":{"user":{"name":%q},"rating":%d}},`+
		`%s"moves":%q}`+"\n",
		g.id, g.rated, g.speed, g.createdAt, g.lastMoveAt, g.status,
		g.white, g.whiteRating, g.black, g.blackRating, winner, g.moves)
}

func spawnTest(t *testing.T, database *db.Database, f *fakeLila, opt IndexerOpt) *IndexerStub {
	t.Helper()
	opt.Lila = f.srv.URL
	if opt.Indexers == 0 {
		opt.Indexers = 2
	}
	stub := Spawn(context.Background(), database, opt, testLogger())
	t.Cleanup(stub.Close)
	return stub
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for indexing run")
	}
}

// hashesBefore replays SANs from the start position and returns the
// zobrist hash before each ply.
func hashesBefore(t *testing.T, sans ...string) []model.ZobristHash {
	t.Helper()
	pos := chess.NewGame().Position()
	var hashes []model.ZobristHash
	for _, san := range sans {
		move, err := chess.AlgebraicNotation{}.Decode(pos, san)
		require.NoError(t, err)
		hashes = append(hashes, zobrist.HashPosition(pos))
		pos = pos.Update(move)
	}
	return hashes
}

func personalAt(t *testing.T, database *db.Database, user model.UserId, color model.Color, hash model.ZobristHash, month model.Month) *model.PersonalEntry {
	t.Helper()
	builder := model.NewPersonalKeyBuilder(user, color)
	entry, err := database.GetPersonal(builder.WithZobrist(model.VariantStandard, hash).WithMonth(month))
	require.NoError(t, err)
	return entry
}

// singleMove returns the only move recorded in the entry.
func singleMove(t *testing.T, entry *model.PersonalEntry) (model.Uci, model.Stats) {
	t.Helper()
	var ucis []model.Uci
	var stats model.Stats
	entry.ForEach(func(uci model.Uci, _ model.Speed, _ model.Mode, group model.PersonalGroup) {
		ucis = append(ucis, uci)
		stats.Add(group.Stats)
	})
	require.Len(t, ucis, 1)
	return ucis[0], stats
}

func TestIndexFreshUserSingleGame(t *testing.T) {
	database := testDatabase(t)
	f := newFakeLila(t)

	lastMoveAt := uint64(time.Date(2023, time.May, 15, 12, 0, 0, 0, time.UTC).UnixMilli())
	game := fixtureGame{
		id: "abcd1234", white: "Alice", black: "Bob",
		whiteRating: 1850, blackRating: 1790,
		speed: "blitz", rated: true, status: "draw",
		moves: "e4 e5 Nf3", createdAt: 1000, lastMoveAt: lastMoveAt,
	}
	f.serve("alice", game.line())
	f.serve("bob", game.line())

	stub := spawnTest(t, database, f, IndexerOpt{})

	done := stub.IndexPlayer("alice")
	require.NotNil(t, done)
	wait(t, done)

	status, err := database.GetPlayerStatus("alice")
	require.NoError(t, err)
	require.NotNil(t, status)
	require.Equal(t, uint64(1000), status.LatestCreatedAt)
	require.NotZero(t, status.IndexedAt)

	id, err := model.NewGameId("abcd1234")
	require.NoError(t, err)
	info, err := database.GetGameInfo(id)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, model.ByColor[bool]{White: true}, info.Indexed)
	require.Equal(t, model.OutcomeDraw, info.Winner)

	month := model.MonthFromMillis(lastMoveAt)
	hashes := hashesBefore(t, "e4", "e5", "Nf3")
	expected := []model.Uci{{From: 12, To: 28}, {From: 52, To: 36}, {From: 6, To: 21}}
	for ply, hash := range hashes {
		entry := personalAt(t, database, "alice", model.White, hash, month)
		uci, stats := singleMove(t, entry)
		require.Equal(t, expected[ply], uci, "ply %d", ply)
		require.Equal(t, model.Stats{Draws: 1, RatingSum: 1850}, stats)
	}

	// Indexed moments ago: nothing to do.
	require.Nil(t, stub.IndexPlayer("alice"))

	// The opponent indexes the same game from the other side.
	wait(t, stub.IndexPlayer("bob"))
	for ply, hash := range hashes {
		entry := personalAt(t, database, "bob", model.Black, hash, month)
		uci, _ := singleMove(t, entry)
		require.Equal(t, expected[ply], uci, "ply %d", ply)
	}
	info, err = database.GetGameInfo(id)
	require.NoError(t, err)
	require.Equal(t, model.ByColor[bool]{White: true, Black: true}, info.Indexed)
}

func TestRepetitionCollapse(t *testing.T) {
	database := testDatabase(t)
	f := newFakeLila(t)

	game := fixtureGame{
		id: "abcd1234", white: "Alice", black: "Bob",
		whiteRating: 1850, blackRating: 1790,
		winner: "white", speed: "rapid", rated: false, status: "resign",
		moves: "Nf3 Nf6 Ng1 Ng8 e4", createdAt: 1000, lastMoveAt: 2000,
	}
	f.serve("alice", game.line())

	stub := spawnTest(t, database, f, IndexerOpt{})
	wait(t, stub.IndexPlayer("alice"))

	month := model.MonthFromMillis(2000)
	hashes := hashesBefore(t, "Nf3", "Nf6", "Ng1", "Ng8", "e4")
	require.Equal(t, hashes[0], hashes[4], "start position recurs at ply 4")

	// The recurring position keeps only the move of its last visit.
	entry := personalAt(t, database, "alice", model.White, hashes[0], month)
	uci, stats := singleMove(t, entry)
	require.Equal(t, model.Uci{From: 12, To: 28}, uci, "e2e4, not g1f3")
	require.Equal(t, model.Stats{White: 1, RatingSum: 1850}, stats)

	entry = personalAt(t, database, "alice", model.White, hashes[1], month)
	uci, _ = singleMove(t, entry)
	require.Equal(t, model.Uci{From: 62, To: 45}, uci, "g8f6")
}

func TestIllegalSanCutoff(t *testing.T) {
	database := testDatabase(t)
	f := newFakeLila(t)

	// Distinct months keep the two games' start-position entries on
	// distinct keys.
	brokenLastMove := uint64(time.Date(2023, time.May, 15, 0, 0, 0, 0, time.UTC).UnixMilli())
	nextLastMove := uint64(time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC).UnixMilli())

	broken := fixtureGame{
		id: "abcd1234", white: "Alice", black: "Bob",
		whiteRating: 1850, blackRating: 1790,
		winner: "white", speed: "blitz", rated: true, status: "resign",
		moves: "e4 e5 Zz9", createdAt: 1000, lastMoveAt: brokenLastMove,
	}
	next := fixtureGame{
		id: "abcd5678", white: "Alice", black: "Bob",
		whiteRating: 1850, blackRating: 1790,
		winner: "black", speed: "blitz", rated: true, status: "mate",
		moves: "d4", createdAt: 3000, lastMoveAt: nextLastMove,
	}
	f.serve("alice", broken.line()+next.line())

	stub := spawnTest(t, database, f, IndexerOpt{})
	wait(t, stub.IndexPlayer("alice"))

	month := model.MonthFromMillis(brokenLastMove)
	hashes := hashesBefore(t, "e4", "e5")

	// Plies before the cutoff are kept.
	entry := personalAt(t, database, "alice", model.White, hashes[0], month)
	uci, _ := singleMove(t, entry)
	require.Equal(t, model.Uci{From: 12, To: 28}, uci)

	// Nothing is recorded at or beyond the cutoff ply.
	afterE5 := hashesBefore(t, "e4", "e5", "Nf3")[2]
	entry = personalAt(t, database, "alice", model.White, afterE5, month)
	require.Equal(t, uint64(0), entry.MaxGameIdx())

	// The game info is still recorded for the cut-off game.
	id, err := model.NewGameId("abcd1234")
	require.NoError(t, err)
	info, err := database.GetGameInfo(id)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.True(t, info.Indexed.White)

	// The run continued to the next game.
	entry = personalAt(t, database, "alice", model.White, hashes[0], model.MonthFromMillis(nextLastMove))
	uci, _ = singleMove(t, entry)
	require.Equal(t, model.Uci{From: 11, To: 27}, uci, "d2d4")

	status, err := database.GetPlayerStatus("alice")
	require.NoError(t, err)
	require.Equal(t, uint64(3000), status.LatestCreatedAt)
}

func TestOngoingGame(t *testing.T) {
	database := testDatabase(t)
	f := newFakeLila(t)

	game := fixtureGame{
		id: "abcd1234", white: "Alice", black: "Bob",
		whiteRating: 1850, blackRating: 1790,
		speed: "classical", rated: true, status: "started",
		moves: "e4", createdAt: 1000, lastMoveAt: 2000,
	}
	f.serve("alice", game.line())

	stub := spawnTest(t, database, f, IndexerOpt{})
	wait(t, stub.IndexPlayer("alice"))

	status, err := database.GetPlayerStatus("alice")
	require.NoError(t, err)
	require.Equal(t, uint64(1000), status.RevisitOngoingCreatedAt)
	require.Equal(t, uint64(1000), status.LatestCreatedAt)

	// No entries and no game info for an ongoing game.
	id, err := model.NewGameId("abcd1234")
	require.NoError(t, err)
	info, err := database.GetGameInfo(id)
	require.NoError(t, err)
	require.Nil(t, info)

	entry := personalAt(t, database, "alice", model.White, hashesBefore(t, "e4")[0], model.MonthFromMillis(2000))
	require.Equal(t, uint64(0), entry.MaxGameIdx())

	// Revisiting supersedes the refresh interval: the next request
	// starts a run immediately, from the ongoing game's creation time.
	done := stub.IndexPlayer("alice")
	require.NotNil(t, done)
	wait(t, done)
	require.Equal(t, 2, f.requestCount("alice"))

	// Still ongoing: the revisit marker is re-armed.
	status, err = database.GetPlayerStatus("alice")
	require.NoError(t, err)
	require.Equal(t, uint64(1000), status.RevisitOngoingCreatedAt)
}

func TestSingleFlight(t *testing.T) {
	database := testDatabase(t)
	f := newFakeLila(t)
	f.serve("alice", "")
	release := f.gate("alice")

	stub := spawnTest(t, database, f, IndexerOpt{})

	first := stub.IndexPlayer("alice")
	require.NotNil(t, first)
	second := stub.IndexPlayer("alice")
	require.NotNil(t, second)
	require.True(t, first == second, "late subscriber shares the in-flight run")

	close(release)
	wait(t, first)
	wait(t, second)
	require.Equal(t, 1, f.requestCount("alice"), "exactly one upstream request")
}

func TestBackpressure(t *testing.T) {
	database := testDatabase(t)
	f := newFakeLila(t)
	f.serve("gate", "")
	release := f.gate("gate")
	defer func() {
		select {
		case <-release:
		default:
			close(release)
		}
	}()

	stub := spawnTest(t, database, f, IndexerOpt{Indexers: 1, QueueSize: 2})

	// Occupies the single actor.
	inFlight := stub.IndexPlayer("gate")
	require.NotNil(t, inFlight)
	require.Eventually(t, func() bool { return f.requestCount("gate") == 1 }, 5*time.Second, 10*time.Millisecond)

	// Fills the queue.
	queued1 := stub.IndexPlayer("u1")
	require.NotNil(t, queued1)
	queued2 := stub.IndexPlayer("u2")
	require.NotNil(t, queued2)

	// Queue full: rejected, not enqueued.
	require.Nil(t, stub.IndexPlayer("u3"))

	close(release)
	wait(t, inFlight)
	wait(t, queued1)
	wait(t, queued2)

	// With the queue drained the rejected player can try again.
	require.NotNil(t, stub.IndexPlayer("u3"))
}

// Re-running a player over the same feed must not double count: the
// game info indexed flag guards every (game, color) pair.
func TestAlreadyIndexedGameSkipped(t *testing.T) {
	database := testDatabase(t)
	f := newFakeLila(t)

	game := fixtureGame{
		id: "abcd1234", white: "Alice", black: "Bob",
		whiteRating: 1850, blackRating: 1790,
		speed: "blitz", rated: true, status: "draw",
		moves: "e4", createdAt: 1000, lastMoveAt: 2000,
	}
	f.serve("alice", game.line())

	stub := spawnTest(t, database, f, IndexerOpt{})
	wait(t, stub.IndexPlayer("alice"))

	// Force a second run over the same feed, bypassing the refresh gate.
	opt := IndexerOpt{Lila: f.srv.URL}
	actor := &indexerActor{idx: 99, stub: stub, db: database, lila: newLila(opt, testLogger()), logger: testLogger()}
	actor.indexPlayer(context.Background(), "alice", &model.PersonalStatus{}, 0)
	require.Equal(t, 2, f.requestCount("alice"))

	entry := personalAt(t, database, "alice", model.White, hashesBefore(t, "e4")[0], model.MonthFromMillis(2000))
	_, stats := singleMove(t, entry)
	require.Equal(t, model.Stats{Draws: 1, RatingSum: 1850}, stats, "the re-observed game contributes nothing")
}
