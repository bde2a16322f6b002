// go-pasori
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-pasori.
//
// go-pasori is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-pasori is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-pasori; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package frame

import (
	"testing"
	"time"
)

func TestLRC(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0x00,
		},
		{
			name: "single byte",
			data: []byte{0x01},
			want: 0xFF,
		},
		{
			name: "sum wraps to zero",
			data: []byte{0xFF, 0x01},
			want: 0x00,
		},
		{
			name: "length bytes of a 2-byte block",
			data: []byte{0x02, 0x00},
			want: 0xFE,
		},
		{
			name: "set command type block",
			data: []byte{0xD6, 0x2A, 0x01},
			want: 0xFF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := LRC(tt.data); got != tt.want {
				t.Errorf("LRC() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestLRCSumsToZero(t *testing.T) {
	t.Parallel()
	inputs := [][]byte{
		{0x00},
		{0x80},
		{0xD6, 0x06, 0x00},
		{0xFF, 0xFF, 0xFF, 0xFF},
		{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0},
	}
	for i := 0; i < 256; i++ {
		inputs = append(inputs, []byte{byte(i), byte(i * 7), byte(255 - i)})
	}

	for _, data := range inputs {
		var sum int
		for _, b := range data {
			sum += int(b)
		}
		sum += int(LRC(data))
		if sum%256 != 0 {
			t.Errorf("sum(% X) + LRC = %d, want 0 mod 256", data, sum)
		}
		if !ValidateLRC(append(append([]byte{}, data...), LRC(data))) {
			t.Errorf("ValidateLRC rejected % X with its own checksum", data)
		}
	}
}

func TestTimeoutToWire(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		timeout time.Duration
		want    uint32
	}{
		{name: "one millisecond", timeout: time.Millisecond, want: 10010},
		{name: "zero", timeout: 0, want: 10},
		{name: "tenth of a millisecond", timeout: 100 * time.Microsecond, want: 1010},
		{name: "sub-microsecond truncates", timeout: 1500 * time.Nanosecond, want: 20},
		{name: "negative clamps", timeout: -time.Second, want: 10},
		{name: "default frame waiting time", timeout: 2478 * time.Microsecond, want: 24790},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TimeoutToWire(tt.timeout); got != tt.want {
				t.Errorf("TimeoutToWire(%v) = %d, want %d", tt.timeout, got, tt.want)
			}
		})
	}
}

func TestLittleEndian(t *testing.T) {
	t.Parallel()
	if got := LE16(TimeoutToWire(time.Millisecond)); !Equal(got, []byte{0x1A, 0x27}) {
		t.Errorf("LE16(10010) = % X, want 1A 27", got)
	}
	if got := LE32(10010); !Equal(got, []byte{0x1A, 0x27, 0x00, 0x00}) {
		t.Errorf("LE32(10010) = % X, want 1A 27 00 00", got)
	}
	if got := LE16(0x12345); !Equal(got, []byte{0x45, 0x23}) {
		t.Errorf("LE16 should truncate, got % X", got)
	}
	if got := LE32(0xDEADBEEF); !Equal(got, []byte{0xEF, 0xBE, 0xAD, 0xDE}) {
		t.Errorf("LE32(0xDEADBEEF) = % X", got)
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()
	samples := [][]byte{
		nil,
		{},
		{0x00},
		{0x00, 0x00},
		{0x00, 0x00, 0xFF, 0x00, 0xFF},
		{0x00, 0x00, 0xFF, 0x00, 0xFE},
	}

	for i, a := range samples {
		if !Equal(a, a) {
			t.Errorf("Equal not reflexive for % X", a)
		}
		for j, b := range samples {
			if Equal(a, b) != Equal(b, a) {
				t.Errorf("Equal not symmetric for %d/%d", i, j)
			}
			if len(a) != len(b) && Equal(a, b) {
				t.Errorf("Equal(% X, % X) true for different lengths", a, b)
			}
		}
	}

	if Equal(ErrorPreamble, AckFrame) {
		t.Error("preamble and ack frame differ in length")
	}
	if !HasPrefix(AckFrame, ErrorPreamble) {
		t.Error("ack frame should start with the error preamble")
	}
}
