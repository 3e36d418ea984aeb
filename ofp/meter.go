/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package ofp

import (
	"encoding/binary"

	"github.com/nabbar/goflow/errors"
)

// MeterModCommand is ofp_meter_mod_command (OF1.3 only).
type MeterModCommand uint16

const (
	MeterModAdd MeterModCommand = iota
	MeterModModify
	MeterModDelete
)

// MeterBand is one band inside a meter (drop or DSCP-remark, the two the
// OF1.3 spec defines).
type MeterBand struct {
	Type      uint16
	Rate      uint32
	BurstSize uint32
}

const meterBandLen = 16

// MeterMod is the decoded METER_MOD body. OF1.0/1.2 have no meters;
// encoding for those versions is a no-op error.
type MeterMod struct {
	Command MeterModCommand
	Flags   uint16
	MeterID uint32
	Bands   []MeterBand
}

func DecodeMeterMod(v Version, body []byte) (MeterMod, errors.Error) {
	if v != Version13 {
		return MeterMod{}, ErrorUnsupportedOnVersion.Error()
	}

	if len(body) < 8 {
		return MeterMod{}, ErrorTruncatedBody.Error()
	}

	mm := MeterMod{
		Command: MeterModCommand(binary.BigEndian.Uint16(body[0:2])),
		Flags:   binary.BigEndian.Uint16(body[2:4]),
		MeterID: binary.BigEndian.Uint32(body[4:8]),
	}

	buf := body[8:]
	for len(buf) >= meterBandLen {
		mm.Bands = append(mm.Bands, MeterBand{
			Type:      binary.BigEndian.Uint16(buf[0:2]),
			Rate:      binary.BigEndian.Uint32(buf[4:8]),
			BurstSize: binary.BigEndian.Uint32(buf[8:12]),
		})
		buf = buf[meterBandLen:]
	}

	return mm, nil
}

func EncodeMeterMod(v Version, mm MeterMod) ([]byte, errors.Error) {
	if v != Version13 {
		return nil, ErrorUnsupportedOnVersion.Error()
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf[0:2], uint16(mm.Command))
	binary.BigEndian.PutUint16(buf[2:4], mm.Flags)
	binary.BigEndian.PutUint32(buf[4:8], mm.MeterID)

	for _, b := range mm.Bands {
		band := make([]byte, meterBandLen)
		binary.BigEndian.PutUint16(band[0:2], b.Type)
		binary.BigEndian.PutUint16(band[2:4], meterBandLen)
		binary.BigEndian.PutUint32(band[4:8], b.Rate)
		binary.BigEndian.PutUint32(band[8:12], b.BurstSize)
		buf = append(buf, band...)
	}

	return buf, nil
}

// MeterConfig is one element of a MULTIPART/METER_CONFIG reply.
type MeterConfig struct {
	MeterID uint32
	Flags   uint16
	Bands   []MeterBand
}

// MeterStats is one element of a MULTIPART/METER_STATS reply.
type MeterStats struct {
	MeterID      uint32
	FlowCount    uint32
	PacketCount  uint64
	ByteCount    uint64
	DurationSec  uint32
	DurationNSec uint32
}

const meterStatsLen = 40

func decodeMeterStats(buf []byte) (MeterStats, errors.Error) {
	if len(buf) < meterStatsLen {
		return MeterStats{}, ErrorTruncatedBody.Error()
	}

	return MeterStats{
		MeterID:      binary.BigEndian.Uint32(buf[0:4]),
		FlowCount:    binary.BigEndian.Uint32(buf[16:20]),
		PacketCount:  binary.BigEndian.Uint64(buf[20:28]),
		ByteCount:    binary.BigEndian.Uint64(buf[28:36]),
	}, nil
}
