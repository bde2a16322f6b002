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

/*
Package pasori reads FeliCa student ID cards through Sony PaSoRi USB readers.

Two reader families are supported. Each speaks its own command set over USB
bulk transfers:

  - RC-S300/S and RC-S300/P: CCID escape frames carrying PC/SC style
    transparent session commands
  - RC-S380/S and RC-S380/P: NFC Port-100 extended frames with an ACK after
    every command

A session finds a reader, claims it, brings it up, and then polls for a card
and reads the block holding the student number.

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-pasori"
	    "github.com/ZaparooProject/go-pasori/transport/usb"
	)

	session, err := pasori.NewSession(
	    pasori.WithTransportFactory(usb.Factory),
	    pasori.WithPollInterval(200*time.Millisecond),
	)
	if err != nil {
	    log.Fatal(err)
	}
	defer session.Close()

	if _, err := session.InitDevice(ctx); err != nil {
	    log.Fatal(err)
	}

	card, err := session.ReadCard(ctx)
	if err != nil && !errors.Is(err, pasori.ErrNoStudentID) {
	    log.Fatal(err)
	}
	fmt.Printf("IDm %s student %s\n", card.IDmString(), card.StudentID)

Transport Selection:

  - usb: libusb through github.com/google/gousb
  - usbfs: Linux usbfs without cgo through github.com/ardnew/softusb
  - pcsc: RC-S300 through the platform PC/SC service (escape commands only)

Lower Level Access:

NewReader wraps an open Transport in the command set of a product. Polling and
ReadWithoutEncryption send single FeliCa commands through it; the felica
package builds the commands and decodes the replies.

Error Handling:

	if errors.Is(err, pasori.ErrNoCard) {
	    // nothing in the field yet
	}
	if pasori.IsRetryable(err) {
	    // transient transport failure
	}

Thread Safety:

Sessions and readers serialize their operations and are safe for concurrent
use. Disconnect ends the session; every later call returns ErrSessionClosed.
*/
package pasori
