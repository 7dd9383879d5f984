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
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"

	"github.com/k2052/lila-openingexplorer/model"
)

// The merge operator makes writes cheap: every observation is a
// Merge() of one encoded chunk, and pebble hands all accumulated
// operands back here (during reads and compactions) to be collapsed.
// Collapsing decodes the concatenation of all operands and re-encodes
// a single compacted chunk, which is a fixed point of the codec.
//
// The operator must be registered before the store is opened and its
// name must never change: pebble persists it in table metadata.
func merger() *pebble.Merger {
	return &pebble.Merger{
		Name:  "openingexplorer",
		Merge: newValueMerger,
	}
}

type valueMerger struct {
	table    byte
	operands [][]byte // oldest first
}

func newValueMerger(key, value []byte) (pebble.ValueMerger, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("merge: empty key")
	}
	m := &valueMerger{table: key[0]}
	return m, m.MergeNewer(value)
}

func (m *valueMerger) MergeNewer(value []byte) error {
	m.operands = append(m.operands, append([]byte(nil), value...))
	return nil
}

func (m *valueMerger) MergeOlder(value []byte) error {
	m.operands = append([][]byte{append([]byte(nil), value...)}, m.operands...)
	return nil
}

func (m *valueMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	switch m.table {
	case TblPersonal:
		entry := new(model.PersonalEntry)
		for _, operand := range m.operands {
			if err := entry.ExtendFromReader(bytes.NewReader(operand)); err != nil {
				return nil, nil, fmt.Errorf("merge personal: %w", err)
			}
		}
		var buf bytes.Buffer
		entry.Write(&buf)
		return buf.Bytes(), nil, nil

	case TblLichess:
		entry := new(model.LichessEntry)
		for _, operand := range m.operands {
			if err := entry.ExtendFromReader(bytes.NewReader(operand)); err != nil {
				return nil, nil, fmt.Errorf("merge lichess: %w", err)
			}
		}
		var buf bytes.Buffer
		entry.Write(&buf)
		return buf.Bytes(), nil, nil

	case TblGameInfo:
		var info *model.GameInfo
		for _, operand := range m.operands {
			next, err := model.ReadGameInfo(bytes.NewReader(operand))
			if err != nil {
				return nil, nil, fmt.Errorf("merge game info: %w", err)
			}
			if info == nil {
				info = next
			} else {
				info.MergeFrom(next)
			}
		}
		var buf bytes.Buffer
		info.Write(&buf)
		return buf.Bytes(), nil, nil

	default:
		// Families without merge semantics keep the newest operand.
		return m.operands[len(m.operands)-1], nil, nil
	}
}
