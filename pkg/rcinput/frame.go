// RC receiver frame codec for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package rcinput reads duty frames from the RC receiver's serial link
// and publishes the commanded duty for the torque path. The link is
// byte-oriented with no framing layer, so the reader aligns on the sync
// byte and drops anything that fails the CRC.
package rcinput

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/snksoft/crc"

	"github.com/KIPE12/RC-Driver/pkg/errors"
)

// Frame layout on the wire:
//
//	[SYNC] [SEQ] [DUTY float32 LE] [CRC-16 BE]
//
// The CRC is CRC-CCITT (XMODEM) over the first six bytes.
const (
	SyncByte  = 0xA5
	FrameSize = 8
)

var crcTable = crc.NewTable(crc.XMODEM)

func frameCRC(buf []byte) uint16 {
	c := crcTable.InitCrc()
	c = crcTable.UpdateCrc(c, buf)
	return crcTable.CRC16(c)
}

// EncodeFrame packs one duty frame. The receiver firmware uses the same
// layout, which is what keeps the loopback tests honest.
func EncodeFrame(seq uint8, duty float32) [FrameSize]byte {
	var f [FrameSize]byte
	f[0] = SyncByte
	f[1] = seq
	binary.LittleEndian.PutUint32(f[2:6], math.Float32bits(duty))
	binary.BigEndian.PutUint16(f[6:8], frameCRC(f[:6]))
	return f
}

// DecodeFrame validates one aligned frame and returns its sequence
// number and duty. The duty comes back unclamped; range policy belongs
// to the reader.
func DecodeFrame(f []byte) (seq uint8, duty float64, err error) {
	if len(f) != FrameSize {
		return 0, 0, errors.InputFrameError(fmt.Sprintf("length %d", len(f)))
	}
	if f[0] != SyncByte {
		return 0, 0, errors.InputFrameError(fmt.Sprintf("sync byte %#02x", f[0]))
	}
	want := binary.BigEndian.Uint16(f[6:8])
	if got := frameCRC(f[:6]); got != want {
		return 0, 0, errors.InputFrameError(fmt.Sprintf("crc %#04x != %#04x", got, want))
	}
	duty = float64(math.Float32frombits(binary.LittleEndian.Uint32(f[2:6])))
	if math.IsNaN(duty) || math.IsInf(duty, 0) {
		return 0, 0, errors.InputFrameError("duty not finite")
	}
	return f[1], duty, nil
}
