// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/zeebo/blake3"
)

// Hasher builds a blake3 fingerprint from a sequence of strings, dates and
// floats. Floats are hashed by their IEEE-754 bits so the digest is stable
// across runs.
type Hasher struct {
	h   *blake3.Hasher
	buf [8]byte
}

func NewHasher() *Hasher {
	return &Hasher{h: blake3.New()}
}

func (h *Hasher) String(s string) *Hasher {
	h.Uint64(uint64(len(s)))
	_, _ = h.h.Write([]byte(s))
	return h
}

func (h *Hasher) Uint64(v uint64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.h.Write(h.buf[:])
	return h
}

func (h *Hasher) Float64(v float64) *Hasher {
	return h.Uint64(math.Float64bits(v))
}

func (h *Hasher) Floats(vals []float64) *Hasher {
	h.Uint64(uint64(len(vals)))
	for _, v := range vals {
		h.Float64(v)
	}
	return h
}

func (h *Hasher) Time(t time.Time) *Hasher {
	return h.Uint64(uint64(t.UnixNano()))
}

// Sum returns the hex encoded 256-bit digest
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}
