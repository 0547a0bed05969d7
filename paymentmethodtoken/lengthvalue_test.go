/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package paymentmethodtoken

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToLengthValueEncodesLengthPrefixedConcatenation(t *testing.T) {
	got := toLengthValue("Google", "merchant-123", "ECv1", "hello")

	want := []byte{
		6, 0, 0, 0, 'G', 'o', 'o', 'g', 'l', 'e',
		12, 0, 0, 0, 'm', 'e', 'r', 'c', 'h', 'a', 'n', 't', '-', '1', '2', '3',
		4, 0, 0, 0, 'E', 'C', 'v', '1',
		5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o',
	}

	assert.Equal(t, want, got)
}

func TestToLengthValueEmptyArgumentsProduceEmptyOutput(t *testing.T) {
	assert.Empty(t, toLengthValue())
	assert.Equal(t, []byte{0, 0, 0, 0}, toLengthValue(""))
}

// Distinct argument tuples must yield distinct byte strings.
// A naive delimiter-free concatenation without length prefixes would let
// ("ab", "c") collide with ("a", "bc"); the length prefix rules this out.
func TestToLengthValueIsInjectiveAcrossArgumentBoundaries(t *testing.T) {
	a := toLengthValue("ab", "c")
	b := toLengthValue("a", "bc")

	assert.NotEqual(t, a, b)
}

func TestToLengthValueOrderMatters(t *testing.T) {
	a := toLengthValue("Google", "merchant")
	b := toLengthValue("merchant", "Google")

	assert.NotEqual(t, a, b)
}
