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

// Package detection discovers supported FeliCa readers attached to the host.
// Concrete detectors live in sub-packages and register themselves on import:
//
//	import _ "github.com/ZaparooProject/go-pasori/detection/usb"
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Detection errors
var (
	ErrNoDevicesFound      = errors.New("no devices found")
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
	ErrDetectionTimeout    = errors.New("detection timed out")
	ErrNoDetectors         = errors.New("no detectors registered")
)

// Mode controls how intrusive detection is
type Mode int

const (
	// Passive only lists devices from descriptors already known to the OS
	Passive Mode = iota
	// Safe opens devices read-only to collect descriptors and permissions
	Safe
	// Full may claim interfaces to confirm the device answers
	Full
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Confidence is how sure a detector is that a device is a supported reader
type Confidence int

// Confidence levels
const (
	Low Confidence = iota
	Medium
	High
)

// DeviceInfo describes a detected reader
type DeviceInfo struct {
	// Metadata holds detector specific details (bus, address, permissions)
	Metadata map[string]string
	// Transport is the transport name that can open the device
	Transport string
	// Path identifies the device for its transport, e.g. "usb:003:007"
	Path string
	// Name is a human readable description
	Name       string
	VendorID   uint16
	ProductID  uint16
	Confidence Confidence
}

// VIDPID returns the vendor and product IDs in blocklist format
func (d DeviceInfo) VIDPID() string {
	return fmt.Sprintf("%04X:%04X", d.VendorID, d.ProductID)
}

// Product returns the product table entry for the device
func (d DeviceInfo) Product() (Product, bool) {
	return LookupProduct(d.VendorID, d.ProductID)
}

// String implements fmt.Stringer
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s [%s] %s (%s)", d.Name, d.VIDPID(), d.Path, d.Transport)
}

// Options configures detection
type Options struct {
	// Transports restricts detection to these transport names. Empty means all.
	Transports []string
	// Blocklist holds VID:PID pairs that are never reported
	Blocklist []string
	// IgnorePaths holds device paths that are never reported
	IgnorePaths []string
	Timeout     time.Duration
	Mode        Mode
}

// DefaultOptions returns safe detection with a short timeout
func DefaultOptions() Options {
	return Options{
		Mode:      Safe,
		Timeout:   5 * time.Second,
		Blocklist: DefaultBlocklist(),
	}
}

// Detector finds devices reachable through one transport
type Detector interface {
	// Transport returns the transport name
	Transport() string
	// Detect lists the supported readers it can see
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	detectorsMu sync.RWMutex
	detectors   = map[string]Detector{}
)

// RegisterDetector adds a detector to the registry, replacing any detector
// registered for the same transport
func RegisterDetector(d Detector) {
	detectorsMu.Lock()
	defer detectorsMu.Unlock()
	detectors[d.Transport()] = d
}

// RegisteredTransports returns the transport names of all registered detectors
func RegisteredTransports() []string {
	detectorsMu.RLock()
	defer detectorsMu.RUnlock()
	names := make([]string, 0, len(detectors))
	for name := range detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func selectedDetectors(transports []string) []Detector {
	detectorsMu.RLock()
	defer detectorsMu.RUnlock()

	var selected []Detector
	if len(transports) == 0 {
		for _, d := range detectors {
			selected = append(selected, d)
		}
	} else {
		for _, name := range transports {
			if d, ok := detectors[name]; ok {
				selected = append(selected, d)
			}
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Transport() < selected[j].Transport()
	})
	return selected
}

// DetectAll runs every selected detector and returns the devices found, most
// confident first. Blocked and ignored devices are dropped.
func DetectAll(opts *Options) ([]DeviceInfo, error) {
	return DetectAllContext(context.Background(), opts)
}

// DetectAllContext is DetectAll bounded by ctx
func DetectAllContext(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	selected := selectedDetectors(opts.Transports)
	if len(selected) == 0 {
		return nil, ErrNoDetectors
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		devices []DeviceInfo
		errs    []error
	)
	for _, d := range selected {
		found, err := d.Detect(ctx, opts)
		if err != nil && !errors.Is(err, ErrNoDevicesFound) {
			errs = append(errs, fmt.Errorf("%s: %w", d.Transport(), err))
		}
		devices = append(devices, filterDevices(found, opts)...)

		if ctx.Err() != nil {
			errs = append(errs, ErrDetectionTimeout)
			break
		}
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})

	if len(devices) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(append([]error{ErrNoDevicesFound}, errs...)...)
		}
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	kept := devices[:0:0]
	for _, d := range devices {
		if IsBlocked(d.VIDPID(), opts.Blocklist) {
			continue
		}
		if IsPathIgnored(d.Path, opts.IgnorePaths) {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}
