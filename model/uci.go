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
	"fmt"
	"io"
)

// Role of a promotion or dropped piece.
type Role uint8

const (
	RoleNone Role = iota
	RoleKnight
	RoleBishop
	RoleRook
	RoleQueen
	RoleKing
)

var roleChars = [...]byte{RoleKnight: 'n', RoleBishop: 'b', RoleRook: 'r', RoleQueen: 'q', RoleKing: 'k'}

// Uci is a move in coordinate notation. Squares are 0..63 (a1=0, h8=63).
// The zero value is the null move. Drops (for variants) set From == To
// with Role naming the dropped piece.
type Uci struct {
	From, To uint8
	Role     Role
}

func (u Uci) IsNull() bool {
	return u == Uci{}
}

func squareName(sq uint8) string {
	return string([]byte{'a' + sq%8, '1' + sq/8})
}

func (u Uci) String() string {
	if u.IsNull() {
		return "0000"
	}
	if u.From == u.To && u.Role != RoleNone {
		return fmt.Sprintf("%c@%s", roleChars[u.Role]-'a'+'A', squareName(u.To))
	}
	s := squareName(u.From) + squareName(u.To)
	if u.Role != RoleNone {
		s += string(roleChars[u.Role])
	}
	return s
}

// Packed as from | to<<6 | role<<12, written as a fixed-width u16
// little-endian. The null move packs to zero.
func (u Uci) packed() uint16 {
	return uint16(u.From) | uint16(u.To)<<6 | uint16(u.Role)<<12
}

func WriteUci(buf *bytes.Buffer, u Uci) {
	n := u.packed()
	buf.WriteByte(byte(n))
	buf.WriteByte(byte(n >> 8))
}

func ReadUci(r *bytes.Reader) (Uci, error) {
	lo, err := r.ReadByte()
	if err != nil {
		return Uci{}, err
	}
	hi, err := r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Uci{}, err
	}
	n := uint16(lo) | uint16(hi)<<8
	u := Uci{
		From: uint8(n & 63),
		To:   uint8((n >> 6) & 63),
		Role: Role(n >> 12),
	}
	if u.Role > RoleKing {
		return Uci{}, errInvalidData
	}
	return u, nil
}
