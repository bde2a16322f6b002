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

// Package usb detects supported FeliCa readers through libusb.
package usb

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/google/gousb"
)

// TransportName is the transport name reported in DeviceInfo
const TransportName = "usb"

// detector implements the Detector interface for libusb devices
type detector struct{}

// New creates a new USB detector
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return TransportName
}

type found struct {
	product detection.Product
	bus     int
	address int
}

// Detect lists supported readers on every USB bus. Passive mode only reads
// cached descriptors; Safe mode adds device node permissions; Full mode also
// opens each reader to read its string descriptors.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	usbCtx := gousb.NewContext()
	defer func() { _ = usbCtx.Close() }()

	var matches []found
	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		product, ok := detection.LookupProduct(uint16(desc.Vendor), uint16(desc.Product))
		if !ok {
			return false
		}
		matches = append(matches, found{product: product, bus: desc.Bus, address: desc.Address})
		return opts.Mode == detection.Full
	})
	descriptors := describe(devs)
	for _, d := range devs {
		_ = d.Close()
	}
	if err != nil && len(matches) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	devices := make([]detection.DeviceInfo, 0, len(matches))
	for _, m := range matches {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		devices = append(devices, deviceInfo(m, opts.Mode, descriptors))
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func deviceInfo(m found, mode detection.Mode, descriptors map[string]map[string]string) detection.DeviceInfo {
	path := detection.FormatUSBPath(m.bus, m.address)
	info := detection.DeviceInfo{
		Transport:  TransportName,
		Path:       path,
		Name:       "Sony PaSoRi " + m.product.Name,
		VendorID:   m.product.VendorID,
		ProductID:  m.product.ProductID,
		Confidence: detection.High,
		Metadata: map[string]string{
			"bus":     fmt.Sprintf("%03d", m.bus),
			"address": fmt.Sprintf("%03d", m.address),
			"chipset": m.product.Chipset.String(),
		},
	}

	if mode != detection.Passive {
		node, accessible := nodeAccess(m.bus, m.address)
		if node != "" {
			info.Metadata["node"] = node
		}
		info.Metadata["accessible"] = fmt.Sprintf("%t", accessible)
		if !accessible {
			info.Confidence = detection.Medium
		}
	}

	for k, v := range descriptors[path] {
		info.Metadata[k] = v
	}
	return info
}

// describe reads string descriptors of opened devices, keyed by device path
func describe(devs []*gousb.Device) map[string]map[string]string {
	out := make(map[string]map[string]string, len(devs))
	for _, d := range devs {
		meta := map[string]string{}
		if s, err := d.Manufacturer(); err == nil {
			meta["manufacturer"] = s
		}
		if s, err := d.Product(); err == nil {
			meta["product"] = s
		}
		if s, err := d.SerialNumber(); err == nil {
			meta["serial"] = s
		}
		out[detection.FormatUSBPath(d.Desc.Bus, d.Desc.Address)] = meta
	}
	return out
}
