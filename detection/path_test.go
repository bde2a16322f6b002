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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUSBPaths(t *testing.T) {
	t.Parallel()

	path := FormatUSBPath(3, 7)
	assert.Equal(t, "usb:003:007", path)
	assert.Equal(t, "/dev/bus/usb/003/007", USBFSNode(3, 7))

	for _, p := range []string{path, USBFSNode(3, 7), "usb:3:7"} {
		bus, addr, err := ParseUSBPath(p)
		require.NoError(t, err, p)
		assert.Equal(t, 3, bus)
		assert.Equal(t, 7, addr)
	}

	for _, p := range []string{"", "COM3", "usb:003", "usb:a:7", "/dev/bus/usb/003/x", "usb:1:2:3"} {
		_, _, err := ParseUSBPath(p)
		assert.Error(t, err, p)
	}
}
