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

// Package pcsc detects RC-S300 readers registered with the platform PC/SC
// service.
package pcsc

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/ebfe/scard"
)

const (
	// TransportName is the transport name reported in DeviceInfo
	TransportName = "pcsc"

	// PathPrefix starts the Path of every PC/SC device. The reader name
	// follows it.
	PathPrefix = "pcsc:"
)

// detector implements the Detector interface for PC/SC readers
type detector struct {
	listReaders func() ([]string, error)
}

// New creates a new PC/SC detector
func New() detection.Detector {
	return &detector{listReaders: listReaders}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return TransportName
}

// Detect lists RC-S300 readers known to the PC/SC service. Only the service
// is queried; no reader is connected to in any mode.
func (d *detector) Detect(ctx context.Context, _ *detection.Options) ([]detection.DeviceInfo, error) {
	names, err := d.listReaders()
	if err != nil {
		return nil, fmt.Errorf("failed to list PC/SC readers: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, name := range names {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		product, ok := ProductForReader(name)
		if !ok {
			continue
		}
		devices = append(devices, detection.DeviceInfo{
			Transport:  TransportName,
			Path:       PathPrefix + name,
			Name:       name,
			VendorID:   product.VendorID,
			ProductID:  product.ProductID,
			Confidence: detection.High,
			Metadata: map[string]string{
				"reader":  name,
				"chipset": product.Chipset.String(),
			},
		})
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func listReaders() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, err
	}
	defer func() { _ = ctx.Release() }()
	return ctx.ListReaders()
}

// ProductForReader maps a PC/SC reader name to a product. Only the RC-S300
// family has a CCID interface, so only its names match.
func ProductForReader(name string) (detection.Product, bool) {
	upper := strings.ToUpper(name)
	if !strings.Contains(upper, "RC-S300") {
		return detection.Product{}, false
	}
	productID := uint16(0x0DC9)
	if strings.Contains(upper, "RC-S300/S") {
		productID = 0x0DC8
	}
	return detection.LookupProduct(detection.SonyVendorID, productID)
}

// ReaderName returns the PC/SC reader name held in a device path
func ReaderName(path string) (string, bool) {
	if !strings.HasPrefix(path, PathPrefix) || len(path) == len(PathPrefix) {
		return "", false
	}
	return strings.TrimPrefix(path, PathPrefix), true
}
