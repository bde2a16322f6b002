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

// Command readid prints the IDm and student number of FeliCa cards held to a
// Sony PaSoRi reader.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	pasori "github.com/ZaparooProject/go-pasori"
	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/ZaparooProject/go-pasori/detection/pcsc"
	"github.com/ZaparooProject/go-pasori/detection/usb"
	"github.com/ZaparooProject/go-pasori/polling"
	pcsctransport "github.com/ZaparooProject/go-pasori/transport/pcsc"
	usbtransport "github.com/ZaparooProject/go-pasori/transport/usb"
	"github.com/ZaparooProject/go-pasori/transport/usbfs"
	"github.com/ardnew/softusb/pkg"
)

type config struct {
	transport    *string
	devicePath   *string
	timeout      *time.Duration
	pollInterval *time.Duration
	debug        *bool
	once         *bool
	list         *bool
}

func parseFlags() *config {
	cfg := &config{
		transport: flag.String("transport", "usb", "Transport to open the reader with: usb, usbfs or pcsc"),
		devicePath: flag.String("device", "",
			"Device path (e.g., usb:003:007 or pcsc:Sony FeliCa Port/PaSoRi 4.0). Leave empty for auto-detection."),
		timeout:      flag.Duration("timeout", 30*time.Second, "How long to wait for cards (default: 30s)"),
		pollInterval: flag.Duration("poll-interval", 250*time.Millisecond, "Polling interval (default: 250ms)"),
		debug:        flag.Bool("debug", false, "Enable debug output"),
		once:         flag.Bool("once", false, "Exit after the first card"),
		list:         flag.Bool("list", false, "List detected readers and exit"),
	}
	flag.Parse()

	if *cfg.debug {
		pasori.SetDebugEnabled(true)
		pkg.SetLogLevel(slog.LevelDebug)
	}
	return cfg
}

// transportFactory returns the factory and the detector name for a transport.
// usbfs readers are found through libusb detection and opened without it.
func transportFactory(name string) (pasori.TransportFactory, string, error) {
	switch strings.ToLower(name) {
	case "usb":
		return usbtransport.Factory, usb.TransportName, nil
	case "usbfs":
		return usbfs.Factory, usb.TransportName, nil
	case "pcsc":
		return pcsctransport.Factory, pcsc.TransportName, nil
	default:
		return nil, "", fmt.Errorf("unsupported transport type: %s", name)
	}
}

func detectReaders(ctx context.Context, detector string) ([]detection.DeviceInfo, error) {
	opts := detection.DefaultOptions()
	opts.Transports = []string{detector}
	devices, err := detection.DetectAllContext(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	return devices, nil
}

// selectDevice returns the detected reader at path
func selectDevice(devices []detection.DeviceInfo, path string) (detection.DeviceInfo, error) {
	for _, d := range devices {
		if d.Path == path {
			return d, nil
		}
	}
	return detection.DeviceInfo{}, fmt.Errorf("%w: %s", pasori.ErrDeviceNotFound, path)
}

func buildOptions(ctx context.Context, cfg *config) ([]pasori.Option, error) {
	factory, detector, err := transportFactory(*cfg.transport)
	if err != nil {
		return nil, err
	}

	opts := []pasori.Option{
		pasori.WithTransportFactory(factory),
		pasori.WithPollInterval(*cfg.pollInterval),
	}

	if *cfg.devicePath == "" {
		detectOpts := detection.DefaultOptions()
		detectOpts.Transports = []string{detector}
		_, _ = fmt.Println("Auto-detecting PaSoRi readers...")
		return append(opts, pasori.WithDetectionOptions(detectOpts)), nil
	}

	devices, err := detectReaders(ctx, detector)
	if err != nil {
		return nil, err
	}
	device, err := selectDevice(devices, *cfg.devicePath)
	if err != nil {
		return nil, err
	}
	_, _ = fmt.Printf("Opening device: %s\n", device)
	return append(opts, pasori.WithDeviceInfo(device)), nil
}

func listReaders(ctx context.Context, cfg *config) error {
	_, detector, err := transportFactory(*cfg.transport)
	if err != nil {
		return err
	}
	devices, err := detectReaders(ctx, detector)
	if err != nil {
		return err
	}
	for _, d := range devices {
		_, _ = fmt.Println(d)
	}
	return nil
}

func printCard(card pasori.Card) {
	if card.StudentID == "" {
		_, _ = fmt.Printf("IDm: %s (no student ID)\n", card.IDmString())
		return
	}
	_, _ = fmt.Printf("IDm: %s  Student ID: %s\n", card.IDmString(), card.StudentID)
}

func readOnce(ctx context.Context, session *pasori.Session) error {
	card, err := session.ReadCard(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		_, _ = fmt.Println("timeout: no card detected")
		return nil
	case errors.Is(err, pasori.ErrNoStudentID):
		printCard(card)
		return nil
	case err != nil:
		return fmt.Errorf("read failed: %w", err)
	}
	printCard(card)
	return nil
}

func runMonitor(ctx context.Context, session *pasori.Session, cfg *config) error {
	monitorConfig := polling.DefaultConfig()
	monitorConfig.PollInterval = *cfg.pollInterval

	monitor := polling.NewMonitor(session, monitorConfig)
	monitor.OnCardDetected = func(card pasori.Card) error {
		printCard(card)
		return nil
	}
	monitor.OnCardChanged = func(card pasori.Card) error {
		_, _ = fmt.Print("Card changed - ")
		printCard(card)
		return nil
	}
	monitor.OnCardRemoved = func() {
		_, _ = fmt.Println("Card removed - ready for next card...")
	}

	err := monitor.Start(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		_, _ = fmt.Println("Session completed")
		return nil
	}
	return err
}

func run(cfg *config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *cfg.list {
		return listReaders(ctx, cfg)
	}

	opts, err := buildOptions(ctx, cfg)
	if err != nil {
		return err
	}
	session, err := pasori.NewSession(opts...)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = session.Close() }()

	reader, err := session.InitDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to open reader: %w", err)
	}
	_, _ = fmt.Printf("Reader: %s\n", reader.Product().Name)

	_, _ = fmt.Printf("Waiting for cards (timeout: %s, poll interval: %s)...\n", *cfg.timeout, *cfg.pollInterval)
	ctx, cancel := context.WithTimeout(ctx, *cfg.timeout)
	defer cancel()

	if *cfg.once {
		return readOnce(ctx, session)
	}
	return runMonitor(ctx, session, cfg)
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
