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

// MultipartType is ofp_multipart_type (OF1.2/1.3) / ofp_stats_type (OF1.0);
// the two wire names for the same request/reply framing concept (§4.5).
type MultipartType uint16

const (
	MultipartDesc MultipartType = iota
	MultipartFlow
	MultipartAggregate
	MultipartTable
	MultipartPortStats
	MultipartQueue
	MultipartGroup
	MultipartGroupDesc
	MultipartGroupFeatures
	MultipartMeter
	MultipartMeterConfig
	MultipartMeterFeatures
	MultipartTableFeatures
	MultipartPortDesc
	MultipartExperimenter MultipartType = 0xffff
)

const (
	MultipartFlagMore uint16 = 1 << 0
)

// Multipart is the common envelope wrapping a repeated array of
// same-typed elements (flow-stats, port-stats, group-desc, …) per §6's
// "variable-length arrays encoded with a per-element length field".
type Multipart struct {
	Type  MultipartType
	Flags uint16
	Body  []byte
}

const multipartHeaderLen = 8

func DecodeMultipart(body []byte) (Multipart, errors.Error) {
	if len(body) < multipartHeaderLen {
		return Multipart{}, ErrorTruncatedBody.Error()
	}

	return Multipart{
		Type:  MultipartType(binary.BigEndian.Uint16(body[0:2])),
		Flags: binary.BigEndian.Uint16(body[2:4]),
		Body:  append([]byte(nil), body[multipartHeaderLen:]...),
	}, nil
}

func EncodeMultipart(m Multipart) []byte {
	buf := make([]byte, multipartHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(m.Type))
	binary.BigEndian.PutUint16(buf[2:4], m.Flags)
	return append(buf, m.Body...)
}

// TableStats is one element of a MULTIPART/TABLE_STATS reply, used by
// the init sequence's step 3 (§4.4).
type TableStats struct {
	TableID      uint8
	ActiveCount  uint32
	LookupCount  uint64
	MatchedCount uint64
}

const tableStatsLen = 24

// DecodeTableStatsArray parses a MULTIPART/TABLE_STATS reply body into its
// repeated fixed-length elements.
func DecodeTableStatsArray(buf []byte) ([]TableStats, errors.Error) {
	var out []TableStats

	for len(buf) >= tableStatsLen {
		out = append(out, TableStats{
			TableID:      buf[0],
			ActiveCount:  binary.BigEndian.Uint32(buf[4:8]),
			LookupCount:  binary.BigEndian.Uint64(buf[8:16]),
			MatchedCount: binary.BigEndian.Uint64(buf[16:24]),
		})
		buf = buf[tableStatsLen:]
	}

	return out, nil
}

// PortStatsEntry is one element of a MULTIPART/PORT_STATS reply.
type PortStatsEntry struct {
	PortNo   uint32
	RxPkts   uint64
	TxPkts   uint64
	RxBytes  uint64
	TxBytes  uint64
	RxErrors uint64
	TxErrors uint64
}

const portStatsLen = 104

func DecodePortStatsArray(buf []byte) ([]PortStatsEntry, errors.Error) {
	var out []PortStatsEntry

	for len(buf) >= portStatsLen {
		out = append(out, PortStatsEntry{
			PortNo:   binary.BigEndian.Uint32(buf[0:4]),
			RxPkts:   binary.BigEndian.Uint64(buf[8:16]),
			TxPkts:   binary.BigEndian.Uint64(buf[16:24]),
			RxBytes:  binary.BigEndian.Uint64(buf[24:32]),
			TxBytes:  binary.BigEndian.Uint64(buf[32:40]),
			RxErrors: binary.BigEndian.Uint64(buf[40:48]),
			TxErrors: binary.BigEndian.Uint64(buf[48:56]),
		})
		buf = buf[portStatsLen:]
	}

	return out, nil
}

// QueueStatsEntry is one element of a MULTIPART/QUEUE_STATS reply.
type QueueStatsEntry struct {
	PortNo   uint32
	QueueID  uint32
	TxBytes  uint64
	TxPkts   uint64
	TxErrors uint64
}

const queueStatsLen = 32

func DecodeQueueStatsArray(buf []byte) ([]QueueStatsEntry, errors.Error) {
	var out []QueueStatsEntry

	for len(buf) >= queueStatsLen {
		out = append(out, QueueStatsEntry{
			PortNo:   binary.BigEndian.Uint32(buf[0:4]),
			QueueID:  binary.BigEndian.Uint32(buf[4:8]),
			TxBytes:  binary.BigEndian.Uint64(buf[8:16]),
			TxPkts:   binary.BigEndian.Uint64(buf[16:24]),
			TxErrors: binary.BigEndian.Uint64(buf[24:32]),
		})
		buf = buf[queueStatsLen:]
	}

	return out, nil
}

// DecodeGroupStatsArray parses a MULTIPART/GROUP_STATS reply body.
func DecodeGroupStatsArray(buf []byte) ([]GroupStats, errors.Error) {
	var out []GroupStats

	for len(buf) >= groupStatsLen {
		gs, e := decodeGroupStats(buf[:groupStatsLen])
		if e != nil {
			return nil, e
		}
		out = append(out, gs)
		buf = buf[groupStatsLen:]
	}

	return out, nil
}

// DecodeMeterStatsArray parses a MULTIPART/METER_STATS reply body.
func DecodeMeterStatsArray(buf []byte) ([]MeterStats, errors.Error) {
	var out []MeterStats

	for len(buf) >= meterStatsLen {
		ms, e := decodeMeterStats(buf[:meterStatsLen])
		if e != nil {
			return nil, e
		}
		out = append(out, ms)
		buf = buf[meterStatsLen:]
	}

	return out, nil
}

// DecodePortDescArray parses a MULTIPART/PORT_DESCRIPTION reply body — the
// OF1.2/1.3 follow-up request the init sequence issues instead of relying
// on FEATURES_REPLY's inline port list (§4.4 Open Question decision).
func DecodePortDescArray(buf []byte) ([]Port, errors.Error) {
	return decodePortList(buf)
}
