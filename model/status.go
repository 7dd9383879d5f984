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
	"time"
)

// PersonalStatus is the per-player indexing watermark.
//
// LatestCreatedAt never decreases across successful runs.
// RevisitOngoingCreatedAt, when set, is at most LatestCreatedAt: it
// marks the earliest game that was still being played during the last
// run, so a later run can pick it up once it terminates.
type PersonalStatus struct {
	IndexedAt               uint64 // unix seconds, zero if never indexed
	LatestCreatedAt         uint64 // ms since epoch
	RevisitOngoingCreatedAt uint64 // ms since epoch, zero if unset
}

// MaybeRevisitOngoing supersedes MaybeIndex: if the last run saw a
// still-ongoing game, re-read from its creation time. The field is
// consumed; the run re-arms it if the game is still being played.
func (s *PersonalStatus) MaybeRevisitOngoing() (uint64, bool) {
	if s.RevisitOngoingCreatedAt != 0 {
		since := s.RevisitOngoingCreatedAt
		s.RevisitOngoingCreatedAt = 0
		return since, true
	}
	return 0, false
}

// MaybeIndex decides whether a fresh pass is due. A never-indexed
// player starts from the beginning of time; a known player is only
// re-indexed after the refresh interval, continuing just past the
// newest game already seen.
func (s *PersonalStatus) MaybeIndex(now time.Time, refresh time.Duration) (uint64, bool) {
	if s.IndexedAt == 0 {
		return 0, true
	}
	if uint64(now.Unix()) >= s.IndexedAt+uint64(refresh/time.Second) {
		return s.LatestCreatedAt + 1, true
	}
	return 0, false
}

func (s *PersonalStatus) Write(buf *bytes.Buffer) {
	WriteUint(buf, s.IndexedAt)
	WriteUint(buf, s.LatestCreatedAt)
	WriteUint(buf, s.RevisitOngoingCreatedAt)
}

func ReadPersonalStatus(r *bytes.Reader) (*PersonalStatus, error) {
	var s PersonalStatus
	var err error
	if s.IndexedAt, err = ReadUint(r); err != nil {
		return nil, err
	}
	if s.LatestCreatedAt, err = ReadUint(r); err != nil {
		return nil, err
	}
	if s.RevisitOngoingCreatedAt, err = ReadUint(r); err != nil {
		return nil, err
	}
	return &s, nil
}
