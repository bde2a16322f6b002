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

package pasori

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/ZaparooProject/go-pasori/felica"
	"github.com/ZaparooProject/go-pasori/internal/frame"
	testutil "github.com/ZaparooProject/go-pasori/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rcs380Product(t *testing.T) detection.Product {
	t.Helper()
	product, ok := detection.LookupProduct(detection.SonyVendorID, 0x06C3)
	require.True(t, ok)
	return product
}

func newTestRCS380(t *testing.T, card *testutil.VirtualCard) (*rcs380Reader, *MockTransport, *testutil.VirtualRCS380) {
	t.Helper()
	emu := testutil.NewVirtualRCS380(card)
	mock := NewMockTransportFor(rcs380Product(t), emu.Respond)
	return newRCS380Reader(mock, rcs380Product(t), time.Second), mock, emu
}

func TestRCS380Init(t *testing.T) {
	t.Parallel()

	reader, mock, emu := newTestRCS380(t, nil)
	require.NoError(t, reader.Init(context.Background()))

	assert.Equal(t, []byte{0x2A, 0x06, 0x06, 0x00, 0x02, 0x02}, emu.Codes())
	assert.Equal(t, 1, emu.Acks())

	writes := mock.Writes()
	require.Len(t, writes, 7)
	assert.Equal(t, frame.AckFrame, writes[0])
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x03, 0x00, 0xFD, 0xD6, 0x2A, 0x01, 0xFF, 0x00}, writes[1])
	assert.Equal(t, writes[2], writes[3], "SwitchRF is sent twice")
	assert.Equal(t, frame.EncodeRCS380(0x00, []byte{0x01, 0x01, 0x0F, 0x01}), writes[4])
	assert.Equal(t, frame.EncodeRCS380(0x02, rcs380DefaultProtocol), writes[5])
	assert.Equal(t, frame.EncodeRCS380(0x02, []byte{0x00, 0x18}), writes[6])
}

func TestRCS380ReadsAckThenResponse(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	reader := newRCS380Reader(mock, rcs380Product(t), time.Second)
	reader.initialized = true

	frm := append([]byte{0x12, felica.ResponsePolling}, testutil.TestIDm...)
	frm = append(frm, testutil.TestPMm...)
	mock.QueueRead(frame.AckFrame, testutil.BuildRCS380CommRFResponse(frm), []byte{0xEE})

	resp, err := reader.SendFelicaCommand(context.Background(), felica.BuildPolling(felica.DefaultPollingRequest()), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestIDm, resp.IDm())

	writes := mock.Writes()
	require.Len(t, writes, 1)
	want := frame.EncodeRCS380(0x04, []byte{0x1A, 0x27, 0x06, 0x00, 0x86, 0xB3, 0x01, 0x00})
	assert.Equal(t, want, writes[0])

	// exactly two reads were consumed
	next, err := mock.Read(context.Background(), frame.MaxReceiveSize)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEE}, next)
}

func TestRCS380FailurePreamble(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	reader := newRCS380Reader(mock, rcs380Product(t), time.Second)
	reader.initialized = true

	mock.QueueRead(frame.AckFrame, []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0xD7, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x12})
	resp, err := reader.SendFelicaCommand(context.Background(), []byte{0x06, 0x00, 0x86, 0xB3, 0x01, 0x00}, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, resp.Empty())
}

func TestRCS380SendFelicaCommand(t *testing.T) {
	t.Parallel()

	card := testutil.NewVirtualCard(nil, "12345")
	reader, _, emu := newTestRCS380(t, card)
	ctx := context.Background()
	require.NoError(t, reader.Init(ctx))

	resp, err := Polling(ctx, reader, felica.DefaultPollingRequest(), time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, testutil.TestIDm, resp.IDm())

	resp, err = ReadWithoutEncryption(ctx, reader, felica.StudentIDRequest(resp.IDm(), felica.DefaultServiceCode), time.Millisecond)
	require.NoError(t, err)
	id, ok := resp.StudentID()
	require.True(t, ok)
	assert.Equal(t, "12345", id)
	assert.Equal(t, byte(0x04), emu.Codes()[len(emu.Codes())-1])
}

func TestRCS380NoCard(t *testing.T) {
	t.Parallel()

	reader, _, _ := newTestRCS380(t, nil)
	ctx := context.Background()
	require.NoError(t, reader.Init(ctx))

	resp, err := Polling(ctx, reader, felica.DefaultPollingRequest(), time.Millisecond)
	require.NoError(t, err)
	assert.True(t, resp.Empty())
}

func TestRCS380WriteFailurePropagates(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetWriteError(errors.New("stall"))
	reader := newRCS380Reader(mock, rcs380Product(t), time.Second)

	err := reader.Init(context.Background())
	require.ErrorIs(t, err, ErrTransportWrite)
	assert.Equal(t, 1, mock.WriteCount())
}

func TestRCS380TimeoutOutOfRange(t *testing.T) {
	t.Parallel()

	reader, mock, _ := newTestRCS380(t, nil)
	reader.initialized = true

	_, err := reader.SendFelicaCommand(context.Background(), []byte{0x01}, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Zero(t, mock.WriteCount())
}

func TestRCS380Disconnect(t *testing.T) {
	t.Parallel()

	reader, mock, emu := newTestRCS380(t, nil)
	ctx := context.Background()
	require.NoError(t, reader.Init(ctx))
	require.NoError(t, reader.Disconnect(ctx))

	writes := mock.Writes()
	require.Len(t, writes, 9)
	assert.Equal(t, frame.EncodeRCS380(0x06, []byte{0x00}), writes[7])
	assert.Equal(t, frame.AckFrame, writes[8])
	assert.Equal(t, 2, emu.Acks())
	assert.Equal(t, 1, mock.CloseCount())
}

func TestRCS380IOTimeout(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.Block()
	reader := newRCS380Reader(mock, rcs380Product(t), 20*time.Millisecond)

	err := reader.Init(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportTimeout)
	assert.Equal(t, ErrorTypeTimeout, GetErrorType(err))
	require.NoError(t, mock.Close())
}

func TestNewReader(t *testing.T) {
	t.Parallel()

	r, err := NewReader(NewMockTransport(), rcs300Product(t), 0)
	require.NoError(t, err)
	assert.Equal(t, ChipsetRCS300, r.Chipset())

	r, err = NewReader(NewMockTransport(), rcs380Product(t), 0)
	require.NoError(t, err)
	assert.Equal(t, ChipsetRCS380, r.Chipset())
	assert.Equal(t, "RC-S380/P", r.Product().Name)

	_, err = NewReader(NewMockTransport(), detection.Product{Name: "RC-S330"}, 0)
	require.ErrorIs(t, err, ErrUnsupportedDevice)

	_, err = NewReader(nil, rcs300Product(t), 0)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestRCS380RecoversAfterIOTimeout(t *testing.T) {
	t.Parallel()

	card := testutil.NewVirtualCard(nil, "12345")
	reader, mock, _ := newTestRCS380(t, card)
	ctx := context.Background()
	require.NoError(t, reader.Init(ctx))
	reader.ioTimeout = 30 * time.Millisecond

	mock.Block()
	_, err := Polling(ctx, reader, felica.DefaultPollingRequest(), time.Millisecond)
	require.ErrorIs(t, err, ErrTransportTimeout)
	mock.Unblock()

	resp, err := ReadWithoutEncryption(ctx, reader, felica.StudentIDRequest(testutil.TestIDm, felica.DefaultServiceCode), time.Millisecond)
	require.NoError(t, err)
	id, ok := resp.StudentID()
	require.True(t, ok)
	assert.Equal(t, "12345", id)

	resp, err = Polling(ctx, reader, felica.DefaultPollingRequest(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestIDm, resp.IDm())
}

func TestRCS380AckHandling(t *testing.T) {
	t.Parallel()

	polled := append([]byte{0x12, felica.ResponsePolling}, testutil.TestIDm...)
	polled = append(polled, testutil.TestPMm...)
	response := testutil.BuildRCS380CommRFResponse(polled)

	tests := []struct {
		wantErr error
		name    string
		queued  [][]byte
	}{
		{
			name:   "response before ACK is discarded",
			queued: [][]byte{response, frame.AckFrame, response},
		},
		{
			name:    "no ACK",
			queued:  [][]byte{response, response, response, response, response},
			wantErr: ErrNoACK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := NewMockTransport()
			reader := newRCS380Reader(mock, rcs380Product(t), time.Second)
			reader.initialized = true
			mock.QueueRead(tt.queued...)

			resp, err := reader.SendFelicaCommand(context.Background(), felica.BuildPolling(felica.DefaultPollingRequest()), time.Millisecond)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsRetryable(err))
				assert.True(t, reader.pending)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testutil.TestIDm, resp.IDm())
			assert.False(t, reader.pending)
		})
	}
}

func TestRCS380DrainsAfterAbandonedCommand(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	reader := newRCS380Reader(mock, rcs380Product(t), time.Second)
	reader.initialized = true
	reader.pending = true

	stale := testutil.BuildRCS380CommRFResponse([]byte{0x02, 0x07})
	mock.QueueRead(frame.AckFrame, stale)
	emu := testutil.NewVirtualRCS380(testutil.NewVirtualCard(nil, "12345"))
	mock.SetResponder(emu.Respond)

	ctx := context.Background()
	resp, err := reader.command(ctx, rcs380InSetRF, rcs380RFTypeF)
	require.NoError(t, err)
	assert.Equal(t, byte(rcs380InSetRF+1), resp.Code)
	assert.False(t, reader.pending)

	polled, err := Polling(ctx, reader, felica.DefaultPollingRequest(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestIDm, polled.IDm())
}

func TestCardTimeoutDefaultMatchesAcrossChipsets(t *testing.T) {
	t.Parallel()

	wire := frame.TimeoutToWire(DefaultCardTimeout)
	polling := felica.BuildPolling(felica.DefaultPollingRequest())

	tests := []struct {
		name    string
		timeout time.Duration
	}{
		{name: "zero", timeout: 0},
		{name: "negative", timeout: -time.Millisecond},
		{name: "explicit default", timeout: DefaultCardTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r300, mock300, _ := newTestRCS300(t, nil)
			r300.initialized = true
			_, err := r300.SendFelicaCommand(context.Background(), polling, tt.timeout)
			require.NoError(t, err)
			writes := mock300.Writes()
			require.Len(t, writes, 2)
			assert.Equal(t, frame.LE32(wire), writes[1][20:24])

			r380, mock380, _ := newTestRCS380(t, nil)
			r380.initialized = true
			_, err = r380.SendFelicaCommand(context.Background(), polling, tt.timeout)
			require.NoError(t, err)
			want := frame.EncodeRCS380(rcs380InCommRF, append(frame.LE16(wire), polling...))
			assert.Equal(t, [][]byte{want}, mock380.Writes())
		})
	}
}
