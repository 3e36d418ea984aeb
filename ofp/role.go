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

// ControllerRole is ofp_controller_role (OF1.2/1.3 role negotiation).
type ControllerRole uint32

const (
	RoleNoChange ControllerRole = iota
	RoleEqual
	RoleMaster
	RoleSlave
)

// Role is shared by ROLE_REQUEST and ROLE_REPLY, surfaced to the
// application observer as role_reply (§4.4).
type Role struct {
	Role         ControllerRole
	GenerationID uint64
}

const roleLen = 16

func DecodeRole(body []byte) (Role, errors.Error) {
	if len(body) < roleLen {
		return Role{}, ErrorTruncatedBody.Error()
	}

	return Role{
		Role:         ControllerRole(binary.BigEndian.Uint32(body[0:4])),
		GenerationID: binary.BigEndian.Uint64(body[8:16]),
	}, nil
}

func EncodeRole(r Role) []byte {
	buf := make([]byte, roleLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(r.Role))
	binary.BigEndian.PutUint64(buf[8:16], r.GenerationID)
	return buf
}
