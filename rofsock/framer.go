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

package rofsock

import (
	"encoding/binary"

	"github.com/nabbar/goflow/ofp"
)

// maxFramesPerTurn bounds how many complete messages one framer.feed call
// hands upward, so a burst of small messages on one connection cannot
// starve the reactor's other connections and timers (§4.2 read-side
// backpressure).
const maxFramesPerTurn = 16

// framer accumulates bytes delivered by the reactor's read pump and slices
// out complete OF frames on the 8-byte header's length field.
type framer struct {
	buf         []byte
	maxFrameLen int
}

func newFramer(maxFrameLen int) *framer {
	return &framer{maxFrameLen: maxFrameLen}
}

// feed appends chunk to the residual buffer and returns up to
// maxFramesPerTurn complete frames (header+body, still undecoded). Any
// partial trailing frame is kept for the next call. A declared length
// exceeding maxFrameLen is reported as ErrorFraming and the framer is left
// unusable (the caller should tear down the connection).
func (f *framer) feed(chunk []byte) ([][]byte, error) {
	f.buf = append(f.buf, chunk...)

	var frames [][]byte
	for len(frames) < maxFramesPerTurn {
		if len(f.buf) < ofp.HeaderLen {
			break
		}

		declared := int(binary.BigEndian.Uint16(f.buf[2:4]))
		if declared < ofp.HeaderLen {
			return frames, ErrorFraming.Error()
		}
		if declared > f.maxFrameLen {
			return frames, ErrorFraming.Error()
		}
		if len(f.buf) < declared {
			break
		}

		frame := make([]byte, declared)
		copy(frame, f.buf[:declared])
		frames = append(frames, frame)
		f.buf = f.buf[declared:]
	}

	// Compact so the residual doesn't retain the backing array of a much
	// larger chunk slice indefinitely.
	if len(f.buf) > 0 {
		compacted := make([]byte, len(f.buf))
		copy(compacted, f.buf)
		f.buf = compacted
	} else {
		f.buf = nil
	}

	return frames, nil
}
