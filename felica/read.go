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

package felica

import (
	"errors"
	"fmt"
)

// ErrInvalidIDm is returned when a read request does not carry an 8-byte IDm.
var ErrInvalidIDm = errors.New("felica: IDm must be 8 bytes")

// BlockSize is the block list element size tag.
type BlockSize int

// Block list element sizes
const (
	BlockSize2 BlockSize = 2
	BlockSize3 BlockSize = 3
)

// AccessMode is the block list access mode.
type AccessMode int

// Block access modes
const (
	AccessUnuse AccessMode = iota
	AccessUse
)

// String returns the access mode name.
func (m AccessMode) String() string {
	if m == AccessUse {
		return "use"
	}
	return "unuse"
}

// ReadRequest parameters for the Read Without Encryption command. Block list
// elements are numbered by their position in BlockSizes and all target the first
// service.
type ReadRequest struct {
	IDm          []byte
	ServiceCodes []uint16
	BlockSizes   []BlockSize
	AccessMode   AccessMode
}

// StudentIDRequest returns the read request for the block holding the student
// number on a card with the given IDm.
func StudentIDRequest(idm []byte, serviceCode uint16) ReadRequest {
	return ReadRequest{
		IDm:          idm,
		ServiceCodes: []uint16{serviceCode},
		BlockSizes:   []BlockSize{BlockSize2},
		AccessMode:   AccessUnuse,
	}
}

// BuildReadWithoutEncryption returns the length-prefixed command:
//
//	len 06 IDm(8) nService services(LE)... nBlock blocks...
func BuildReadWithoutEncryption(req ReadRequest) ([]byte, error) {
	if len(req.IDm) != IDmLength {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIDm, len(req.IDm))
	}
	if len(req.ServiceCodes) > 0xFF || len(req.BlockSizes) > 0xFF {
		return nil, fmt.Errorf("felica: too many services (%d) or blocks (%d)",
			len(req.ServiceCodes), len(req.BlockSizes))
	}

	cmd := make([]byte, 0, 1+IDmLength+1+2*len(req.ServiceCodes)+1+2*len(req.BlockSizes))
	cmd = append(cmd, CommandReadWithoutEncryption)
	cmd = append(cmd, req.IDm...)

	cmd = append(cmd, byte(len(req.ServiceCodes)))
	for _, code := range req.ServiceCodes {
		cmd = append(cmd, byte(code), byte(code>>8))
	}

	cmd = append(cmd, byte(len(req.BlockSizes)))
	for i, size := range req.BlockSizes {
		cmd = append(cmd, blockListElement(byte(i), size, req.AccessMode)...)
	}

	return prefixLength(cmd), nil
}

// blockListElement always emits the 2-byte form. A size of 3 only clears the
// length flag; the card then reads the block number as the low byte of a 2-byte
// field.
func blockListElement(index byte, size BlockSize, mode AccessMode) []byte {
	var flags byte
	if size == BlockSize2 {
		flags |= 0x80
	}
	if mode == AccessUse {
		flags |= 0x10
	}
	return []byte{flags, index}
}
