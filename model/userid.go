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

import "strings"

// UserId is the canonical (lowercase) form of a player name. It is used
// both as a sharding key and as part of storage keys, so the
// canonicalization must happen exactly once, at the boundary.
type UserId string

func UserIdFromName(name string) UserId {
	return UserId(strings.ToLower(name))
}

func (u UserId) String() string {
	return string(u)
}
