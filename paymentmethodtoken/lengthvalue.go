/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package paymentmethodtoken

import "encoding/binary"

// toLengthValue builds the canonical signed-bytes encoding: the
// concatenation of, for each argument in order, a 4-byte little-endian
// unsigned length of its UTF-8 byte length followed by those bytes. There
// are no delimiters and no terminator, so the encoding is only unambiguous
// because both sides agree on the number and order of arguments; getting
// that order wrong silently produces a string that will never verify.
func toLengthValue(values ...string) []byte {
	out := make([]byte, 0, lengthValueSize(values))

	var lenBuf [4]byte

	for _, v := range values {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v)))
		out = append(out, lenBuf[:]...)
		out = append(out, v...)
	}

	return out
}

func lengthValueSize(values []string) int {
	size := 0
	for _, v := range values {
		size += 4 + len(v)
	}

	return size
}
