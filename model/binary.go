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
	"io"
)

// Binary primitives shared by all persisted entry formats.
//
// Unsigned integers use LEB128: little-endian, 7 data bits per byte,
// the high bit marks continuation.

// WriteUint appends v to buf in LEB128.
func WriteUint(buf *bytes.Buffer, v uint64) {
	for v >= 0x80 {
		buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	buf.WriteByte(byte(v))
}

// ReadUint reads a LEB128 integer. io.EOF is returned only if the
// first byte is missing; a truncated value is io.ErrUnexpectedEOF.
func ReadUint(r *bytes.Reader) (uint64, error) {
	var v uint64
	var shift uint
	for i := 0; ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if i > 0 && err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if shift >= 64 {
			return 0, errInvalidData
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
	}
}
