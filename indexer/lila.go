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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff/v4"
	"github.com/ledgerwatch/log/v3"
	"golang.org/x/time/rate"

	"github.com/k2052/lila-openingexplorer/model"
)

var errUserNotFound = errors.New("indexer: user not found")

// lila streams a user's game history as newline-delimited JSON.
type lila struct {
	client  *http.Client
	limiter *rate.Limiter
	opt     IndexerOpt
	logger  log.Logger
}

func newLila(opt IndexerOpt, logger log.Logger) *lila {
	return &lila{
		// No client timeout: a full history stream stays open for as
		// long as the upstream needs. Cancellation comes from ctx.
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		opt:     opt,
		logger:  logger,
	}
}

// userGames opens the game stream for games created at or after since.
// Transient upstream failures (network, 429, 5xx) are retried with
// backoff; a 404 means the user does not exist.
func (l *lila) userGames(ctx context.Context, user model.UserId, sinceCreatedAt uint64) (*gameStream, error) {
	endpoint := fmt.Sprintf("%s/api/games/user/%s?since=%d&moves=true&ongoing=true&sort=dateAsc",
		l.opt.Lila, url.PathEscape(string(user)), sinceCreatedAt)

	var resp *http.Response
	open := func() error {
		if err := l.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/x-ndjson")
		if l.opt.Bearer != "" {
			req.Header.Set("Authorization", "Bearer "+l.opt.Bearer)
		}

		res, err := l.client.Do(req)
		if err != nil {
			return err
		}
		switch {
		case res.StatusCode == http.StatusOK:
			resp = res
			return nil
		case res.StatusCode == http.StatusNotFound:
			res.Body.Close()
			return backoff.Permanent(errUserNotFound)
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
			res.Body.Close()
			l.logger.Warn("[lila] retrying", "user", user, "status", res.Status)
			return fmt.Errorf("upstream status %s", res.Status)
		default:
			res.Body.Close()
			return backoff.Permanent(fmt.Errorf("upstream status %s", res.Status))
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(open, bo); err != nil {
		return nil, err
	}
	return newGameStream(resp.Body), nil
}

// gameStream is a finite lazy sequence of games.
type gameStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newGameStream(body io.ReadCloser) *gameStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &gameStream{body: body, scanner: scanner}
}

// Next returns the next game, or (nil, nil) at the end of the stream.
// A non-nil error with a nil game is a skippable per-item failure; the
// stream stays usable.
func (s *gameStream) Next() (*Game, error) {
	if s.done {
		return nil, nil
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return decodeGame(line)
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		// The connection broke mid-stream. Everything read so far has
		// been indexed; report once and end the sequence.
		return nil, fmt.Errorf("game stream: %w", err)
	}
	return nil, nil
}

func (s *gameStream) Close() error {
	return s.body.Close()
}
