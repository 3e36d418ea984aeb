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

// Package ofp implements the OpenFlow 1.0/1.2/1.3 wire format: the common
// 8-byte header, per-message-type bodies, the OXM match codec and the
// instruction/action lists used inside FLOW_MOD and PACKET_OUT.
package ofp

// Version is the wire protocol version carried in every OF header byte 0.
type Version uint8

const (
	VersionUnknown Version = 0x00
	Version10      Version = 0x01
	Version12      Version = 0x03
	Version13      Version = 0x04
)

func (v Version) String() string {
	switch v {
	case Version10:
		return "1.0"
	case Version12:
		return "1.2"
	case Version13:
		return "1.3"
	default:
		return "unknown"
	}
}

// Supported reports whether v is one of the three versions this runtime speaks.
func (v Version) Supported() bool {
	switch v {
	case Version10, Version12, Version13:
		return true
	default:
		return false
	}
}

// Bitmap is an unordered set of supported versions, encoded in HELLO's
// OFPHET_VERSIONBITMAP element as a bitfield indexed by version number.
type Bitmap uint32

// NewBitmap builds a Bitmap from a list of versions.
func NewBitmap(versions ...Version) Bitmap {
	var b Bitmap
	for _, v := range versions {
		b = b.Add(v)
	}
	return b
}

func (b Bitmap) Add(v Version) Bitmap {
	if v == VersionUnknown {
		return b
	}
	return b | (1 << uint(v))
}

func (b Bitmap) Has(v Version) bool {
	if v == VersionUnknown {
		return false
	}
	return b&(1<<uint(v)) != 0
}

// Max returns the numerically highest version present in the bitmap, or
// VersionUnknown if the bitmap is empty.
func (b Bitmap) Max() Version {
	var max Version = VersionUnknown

	for v := Version(1); v < 32; v++ {
		if b.Has(v) && v > max {
			max = v
		}
	}

	return max
}

// Intersect returns the bitmap of versions present in both b and other.
func (b Bitmap) Intersect(other Bitmap) Bitmap {
	return b & other
}

// Negotiate picks the numerically largest common version between local and
// peer bitmaps, or VersionUnknown if they share none. Per §3, when the peer
// offers no bitmap element, callers should instead build the peer bitmap as
// a singleton of the HELLO header version before calling Negotiate.
func Negotiate(local, peer Bitmap) Version {
	return local.Intersect(peer).Max()
}
