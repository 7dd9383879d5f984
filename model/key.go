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
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// ZobristHash is a 128 bit position fingerprint.
type ZobristHash struct {
	Hi, Lo uint64
}

// Personal keys are user_hash + color + variant + zobrist + month. The
// user hash and color lead so that all positions of one player/color
// share a key prefix and the store can range-scan them. The month is
// big-endian so months of one position sort chronologically.
//
// The builder is constructed once per (user, color) and specialized
// per position and month without re-hashing the user id.

type PersonalKeyBuilder struct {
	base [9]byte
}

func NewPersonalKeyBuilder(user UserId, color Color) PersonalKeyBuilder {
	var b PersonalKeyBuilder
	binary.BigEndian.PutUint64(b.base[:8], xxhash.Sum64String(string(user)))
	b.base[8] = byte(color)
	return b
}

// Prefix is the (user, color) scan prefix.
func (b *PersonalKeyBuilder) Prefix() []byte {
	out := make([]byte, len(b.base))
	copy(out, b.base[:])
	return out
}

func (b *PersonalKeyBuilder) WithZobrist(variant Variant, hash ZobristHash) PersonalKeyPrefix {
	var p PersonalKeyPrefix
	copy(p.b[:9], b.base[:])
	p.b[9] = byte(variant)
	binary.LittleEndian.PutUint64(p.b[10:18], hash.Lo)
	binary.LittleEndian.PutUint64(p.b[18:26], hash.Hi)
	return p
}

type PersonalKeyPrefix struct {
	b [26]byte
}

func (p PersonalKeyPrefix) WithMonth(m Month) PersonalKey {
	var k PersonalKey
	copy(k[:26], p.b[:])
	binary.BigEndian.PutUint16(k[26:28], uint16(m))
	return k
}

// PersonalKey is the full key within the personal key family.
type PersonalKey [28]byte

func (k PersonalKey) Bytes() []byte {
	return k[:]
}
