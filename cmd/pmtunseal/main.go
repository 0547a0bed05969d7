/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

// Command pmtunseal is an operator-facing front-end for the
// paymentmethodtoken library: it reads a sealed Google Payment Method
// Token, builds a Recipient from flags, and prints the decrypted payload.
package main

import (
	"fmt"
	"os"

	"github.com/tink-crypto/paymentmethodtoken-go/cmd/pmtunseal/internal/unsealcmd"
)

func main() {
	if err := unsealcmd.New().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pmtunseal:", err)
		os.Exit(1)
	}
}
