/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package schema

// PrincipalType distinguishes a USER from a ROLE. A role cannot carry
// authentication data.
type PrincipalType string

const (
	PrincipalUser PrincipalType = "user"
	PrincipalRole PrincipalType = "role"
)

// Reserved user ids, carried forward from the original's box.schema: these
// three can never be dropped.
const (
	UIDGuest  uint32 = 0
	UIDAdmin  uint32 = 1
	UIDPublic uint32 = 2
)

// ScrambleBase64Size is the decoded length (bytes) a chap-sha1 auth payload
// must have, per the _user external interface contract (§6). A SHA-1
// scramble is 20 bytes.
const ScrambleBase64Size = 20

// User is a principal: either an actual login (USER) or a privilege
// bundle (ROLE).
type User struct {
	UID      uint32
	OwnerUID uint32
	Type     PrincipalType
	Name     string

	// AuthMechanism is always "chap-sha1" when set; Scramble is the decoded
	// (not base64) scramble bytes. A ROLE must leave both unset.
	AuthMechanism string
	Scramble      []byte
}

// IsReserved reports whether this is one of the three non-droppable users.
func (u *User) IsReserved() bool {
	return u.UID == UIDGuest || u.UID == UIDAdmin || u.UID == UIDPublic
}

// Func is a stored function's metadata: identity and per-user access.
type Func struct {
	FID      uint32
	OwnerUID uint32
	Name     string

	access accessMap
}

// accessMap is the same per-user access-bitmap shape Space uses, factored
// out since Func and Privilege objects need it too.
type accessMap = map[uint32]uint32

// ObjectType names what a Privilege grants access to.
type ObjectType string

const (
	ObjectUniverse ObjectType = "universe"
	ObjectSpace    ObjectType = "space"
	ObjectFunction ObjectType = "function"
)

// Access bit flags, OR-combined into a Privilege's Access field and into
// Space/Func per-user bitmaps.
const (
	AccessRead uint32 = 1 << iota
	AccessWrite
	AccessExecute
	AccessCreate
	AccessDrop
	AccessAlter
	AccessGrant
)

// Privilege is a single grant: grantor gave grantee this access on an
// object.
type Privilege struct {
	GrantorID  uint32
	GranteeID  uint32
	ObjectType ObjectType
	ObjectID   uint32
	Access     uint32
}
