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
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxYear * 12 + 12 < 1<<16
const maxYear = 3000

// Month is a dense ordinal, year*12 + month0. The dense form keys the
// store and sorts chronologically.
type Month uint16

func MaxMonth() Month {
	return Month(maxYear*12 + 11)
}

// MonthFromTimeSaturating clamps times before year 0 to month 0 and
// after maxYear to the maximum month.
func MonthFromTimeSaturating(t time.Time) Month {
	year := t.UTC().Year()
	if year < 0 {
		return 0
	}
	if year > maxYear {
		return MaxMonth()
	}
	return Month(uint16(year)*12 + uint16(t.UTC().Month()) - 1)
}

// MonthFromMillis converts a millisecond unix timestamp, saturating.
func MonthFromMillis(ms uint64) Month {
	return MonthFromTimeSaturating(time.UnixMilli(int64(ms)))
}

func (m Month) AddSaturating(months uint16) Month {
	sum := uint32(m) + uint32(months)
	if sum > uint32(MaxMonth()) {
		return MaxMonth()
	}
	return Month(sum)
}

func MonthFromUint16(v uint16) (Month, error) {
	if v > uint16(MaxMonth()) {
		return 0, fmt.Errorf("month out of range: %d", v)
	}
	return Month(v), nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d/%02d", m/12, m%12+1)
}

// ParseMonth accepts "yyyy/mm" and "yyyy" (meaning January).
func ParseMonth(s string) (Month, error) {
	yearPart, monthPart, hasMonth := strings.Cut(s, "/")

	year, err := strconv.ParseUint(yearPart, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid month: %q", s)
	}

	monthPlusOne := uint64(1)
	if hasMonth {
		monthPlusOne, err = strconv.ParseUint(monthPart, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid month: %q", s)
		}
	}

	if year > maxYear || monthPlusOne < 1 || monthPlusOne > 12 {
		return 0, fmt.Errorf("invalid month: %q", s)
	}
	return Month(year*12 + monthPlusOne - 1), nil
}
