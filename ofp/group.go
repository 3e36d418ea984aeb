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

// GroupModCommand is ofp_group_mod_command (OF1.2/1.3 only).
type GroupModCommand uint16

const (
	GroupModAdd GroupModCommand = iota
	GroupModModify
	GroupModDelete
)

// GroupType is ofp_group_type.
type GroupType uint8

const (
	GroupTypeAll GroupType = iota
	GroupTypeSelect
	GroupTypeIndirect
	GroupTypeFastFailover
)

// Bucket is one action bucket inside a group (weight/watch-port/
// watch-group plus its own action list).
type Bucket struct {
	Weight     uint16
	WatchPort  uint32
	WatchGroup uint32
	Actions    []Action
}

// GroupMod is the decoded GROUP_MOD body. Not valid on OF1.0; encoding for
// that version is a no-op error per SPEC_FULL.md's DOMAIN MODULES section.
type GroupMod struct {
	Command GroupModCommand
	Type    GroupType
	GroupID uint32
	Buckets []Bucket
}

func DecodeGroupMod(v Version, body []byte) (GroupMod, errors.Error) {
	if v == Version10 {
		return GroupMod{}, ErrorUnsupportedOnVersion.Error()
	}

	if len(body) < 8 {
		return GroupMod{}, ErrorTruncatedBody.Error()
	}

	gm := GroupMod{
		Command: GroupModCommand(binary.BigEndian.Uint16(body[0:2])),
		Type:    GroupType(body[2]),
		GroupID: binary.BigEndian.Uint32(body[4:8]),
	}

	buckets, e := decodeBuckets(body[8:])
	if e != nil {
		return GroupMod{}, e
	}
	gm.Buckets = buckets

	return gm, nil
}

func decodeBuckets(buf []byte) ([]Bucket, errors.Error) {
	var buckets []Bucket

	for len(buf) > 0 {
		if len(buf) < 16 {
			return nil, ErrorTruncatedBody.Error()
		}

		length := int(binary.BigEndian.Uint16(buf[0:2]))
		if length < 16 || length > len(buf) {
			return nil, ErrorTruncatedBody.Error()
		}

		b := Bucket{
			Weight:     binary.BigEndian.Uint16(buf[2:4]),
			WatchPort:  binary.BigEndian.Uint32(buf[4:8]),
			WatchGroup: binary.BigEndian.Uint32(buf[8:12]),
		}

		actions, e := DecodeActionList(buf[16:length])
		if e != nil {
			return nil, e
		}
		b.Actions = actions

		buckets = append(buckets, b)
		buf = buf[length:]
	}

	return buckets, nil
}

func encodeBuckets(buckets []Bucket) []byte {
	var out []byte

	for _, b := range buckets {
		actions := EncodeActionList(b.Actions)
		length := 16 + len(actions)

		head := make([]byte, 16)
		binary.BigEndian.PutUint16(head[0:2], uint16(length))
		binary.BigEndian.PutUint16(head[2:4], b.Weight)
		binary.BigEndian.PutUint32(head[4:8], b.WatchPort)
		binary.BigEndian.PutUint32(head[8:12], b.WatchGroup)

		out = append(out, head...)
		out = append(out, actions...)
	}

	return out
}

func EncodeGroupMod(v Version, gm GroupMod) ([]byte, errors.Error) {
	if v == Version10 {
		return nil, ErrorUnsupportedOnVersion.Error()
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf[0:2], uint16(gm.Command))
	buf[2] = byte(gm.Type)
	binary.BigEndian.PutUint32(buf[4:8], gm.GroupID)

	return append(buf, encodeBuckets(gm.Buckets)...), nil
}

// GroupDesc is one element of a MULTIPART/GROUP_DESC reply.
type GroupDesc struct {
	Type    GroupType
	GroupID uint32
	Buckets []Bucket
}

// GroupStats is one element of a MULTIPART/GROUP_STATS reply.
type GroupStats struct {
	GroupID      uint32
	RefCount     uint32
	PacketCount  uint64
	ByteCount    uint64
	DurationSec  uint32
	DurationNSec uint32
}

const groupStatsLen = 32

func decodeGroupStats(buf []byte) (GroupStats, errors.Error) {
	if len(buf) < groupStatsLen {
		return GroupStats{}, ErrorTruncatedBody.Error()
	}

	return GroupStats{
		GroupID:      binary.BigEndian.Uint32(buf[4:8]),
		RefCount:     binary.BigEndian.Uint32(buf[8:12]),
		PacketCount:  binary.BigEndian.Uint64(buf[16:24]),
		ByteCount:    binary.BigEndian.Uint64(buf[24:32]),
	}, nil
}
