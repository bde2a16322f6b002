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

package detection

import (
	"testing"
)

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		devicePath  string
		ignorePaths []string
		expected    bool
	}{
		{
			name:        "empty ignore list",
			devicePath:  "usb:003:007",
			ignorePaths: []string{},
			expected:    false,
		},
		{
			name:        "empty device path",
			devicePath:  "",
			ignorePaths: []string{"usb:003:007"},
			expected:    false,
		},
		{
			name:        "exact match usb path",
			devicePath:  "usb:003:007",
			ignorePaths: []string{"usb:003:007"},
			expected:    true,
		},
		{
			name:        "exact match usbfs node",
			devicePath:  "/dev/bus/usb/003/007",
			ignorePaths: []string{"/dev/bus/usb/003/007"},
			expected:    true,
		},
		{
			name:        "usb path matches usbfs node",
			devicePath:  "/dev/bus/usb/003/007",
			ignorePaths: []string{"usb:3:7"},
			expected:    true,
		},
		{
			name:        "pcsc path matches bare reader name",
			devicePath:  "pcsc:SONY FeliCa RC-S300/P 00 00",
			ignorePaths: []string{"SONY FeliCa RC-S300/P 00 00"},
			expected:    true,
		},
		{
			name:        "pcsc reader name case insensitive",
			devicePath:  "SONY FeliCa RC-S300/P 00 00",
			ignorePaths: []string{"sony felica rc-s300/p 00 00"},
			expected:    true,
		},
		{
			name:        "different device on same bus",
			devicePath:  "usb:003:008",
			ignorePaths: []string{"usb:003:007"},
			expected:    false,
		},
		{
			name:        "multiple paths with match",
			devicePath:  "usb:001:004",
			ignorePaths: []string{"usb:003:007", "usb:001:004"},
			expected:    true,
		},
		{
			name:        "usbfs node with relative components",
			devicePath:  "/dev/bus/usb/../usb/003/007",
			ignorePaths: []string{"/dev/bus/usb/003/007"},
			expected:    true,
		},
		{
			name:        "empty strings in ignore list",
			devicePath:  "usb:003:007",
			ignorePaths: []string{"", "usb:003:007", ""},
			expected:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := IsPathIgnored(tt.devicePath, tt.ignorePaths)
			if result != tt.expected {
				t.Errorf("IsPathIgnored(%q, %v) = %v, want %v",
					tt.devicePath, tt.ignorePaths, result, tt.expected)
			}
		})
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocklist := []string{"054c:06c1", " 1234:5678 ", "garbage"}
	tests := []struct {
		vidpid string
		want   bool
	}{
		{vidpid: "054C:06C1", want: true},
		{vidpid: "054c:06c1", want: true},
		{vidpid: "1234:5678", want: true},
		{vidpid: "054C:06C3", want: false},
		{vidpid: "054C:6C1", want: true},
		{vidpid: "", want: false},
	}

	for _, tt := range tests {
		if got := IsBlocked(tt.vidpid, blocklist); got != tt.want {
			t.Errorf("IsBlocked(%q) = %v, want %v", tt.vidpid, got, tt.want)
		}
	}
}

func TestParseVIDPID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		vid     uint16
		pid     uint16
		wantErr bool
	}{
		{input: "054C:0DC9", vid: 0x054C, pid: 0x0DC9},
		{input: "054c:6c3", vid: 0x054C, pid: 0x06C3},
		{input: " 054c:06c1 ", vid: 0x054C, pid: 0x06C1},
		{input: "RC-S380", wantErr: true},
		{input: "054C:zzzz", wantErr: true},
		{input: "10000:0001", wantErr: true},
	}

	for _, tt := range tests {
		vid, pid, err := ParseVIDPID(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseVIDPID(%q) should fail", tt.input)
			}
			continue
		}
		if err != nil || vid != tt.vid || pid != tt.pid {
			t.Errorf("ParseVIDPID(%q) = %04X, %04X, %v", tt.input, vid, pid, err)
		}
	}
}

func TestOptionsWithIgnorePaths(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if opts.IgnorePaths != nil {
		t.Errorf("DefaultOptions().IgnorePaths should be nil, got %v", opts.IgnorePaths)
	}
	if opts.Mode != Safe {
		t.Errorf("DefaultOptions().Mode = %v, want safe", opts.Mode)
	}

	opts.IgnorePaths = []string{"usb:003:007", "/dev/bus/usb/001/004"}
	if len(opts.IgnorePaths) != 2 {
		t.Errorf("Expected 2 ignore paths, got %d", len(opts.IgnorePaths))
	}
}
