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

package db

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ledgerwatch/log/v3"

	"github.com/k2052/lila-openingexplorer/model"
)

// Database is the facade over the pebble store. Observations go in
// through merge operations; the merge operator in merge.go collapses
// them back into single aggregates.
type Database struct {
	db     *pebble.DB
	logger log.Logger
}

// Open opens or creates the store at dir. The merge operator is
// registered here, before pebble opens the tables.
func Open(dir string, cacheBytes int64, logger log.Logger) (*Database, error) {
	opts := &pebble.Options{
		Merger: merger(),
	}
	if cacheBytes > 0 {
		cache := pebble.NewCache(cacheBytes)
		defer cache.Unref()
		opts.Cache = cache
	}
	pdb, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dir, err)
	}
	logger.Info("[db] store open", "dir", dir, "cache", cacheBytes)
	return &Database{db: pdb, logger: logger}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func statusKey(user model.UserId) []byte {
	return append([]byte{TblPlayerStatus}, string(user)...)
}

func gameInfoKey(id model.GameId) []byte {
	var buf bytes.Buffer
	buf.WriteByte(TblGameInfo)
	model.WriteGameId(&buf, id)
	return buf.Bytes()
}

func personalKey(key model.PersonalKey) []byte {
	return append([]byte{TblPersonal}, key.Bytes()...)
}

// get reads a key and hands the value to decode before the backing
// buffer is released. Missing keys decode nothing and return nil.
func (d *Database) get(key []byte, decode func(*bytes.Reader) error) error {
	value, closer, err := d.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil
		}
		return err
	}
	defer closer.Close()
	return decode(bytes.NewReader(value))
}

func (d *Database) GetPlayerStatus(user model.UserId) (*model.PersonalStatus, error) {
	var status *model.PersonalStatus
	err := d.get(statusKey(user), func(r *bytes.Reader) error {
		var err error
		status, err = model.ReadPersonalStatus(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get player status %s: %w", user, err)
	}
	return status, nil
}

func (d *Database) PutPlayerStatus(user model.UserId, status *model.PersonalStatus) error {
	var buf bytes.Buffer
	status.Write(&buf)
	if err := d.db.Set(statusKey(user), buf.Bytes(), pebble.Sync); err != nil {
		return fmt.Errorf("put player status %s: %w", user, err)
	}
	return nil
}

func (d *Database) GetGameInfo(id model.GameId) (*model.GameInfo, error) {
	var info *model.GameInfo
	err := d.get(gameInfoKey(id), func(r *bytes.Reader) error {
		var err error
		info, err = model.ReadGameInfo(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get game info %s: %w", id, err)
	}
	return info, nil
}

func (d *Database) MergeGameInfo(id model.GameId, info *model.GameInfo) error {
	var buf bytes.Buffer
	info.Write(&buf)
	if err := d.db.Merge(gameInfoKey(id), buf.Bytes(), pebble.NoSync); err != nil {
		return fmt.Errorf("merge game info %s: %w", id, err)
	}
	return nil
}

func (d *Database) MergePersonal(key model.PersonalKey, entry *model.PersonalEntry) error {
	var buf bytes.Buffer
	entry.Write(&buf)
	if err := d.db.Merge(personalKey(key), buf.Bytes(), pebble.NoSync); err != nil {
		return fmt.Errorf("merge personal: %w", err)
	}
	return nil
}

// GetPersonal reads and decodes the aggregate at key. Reads go through
// the merge operator, so the value is always one compacted chunk.
func (d *Database) GetPersonal(key model.PersonalKey) (*model.PersonalEntry, error) {
	entry := new(model.PersonalEntry)
	err := d.get(personalKey(key), func(r *bytes.Reader) error {
		return entry.ExtendFromReader(r)
	})
	if err != nil {
		return nil, fmt.Errorf("get personal: %w", err)
	}
	return entry, nil
}
