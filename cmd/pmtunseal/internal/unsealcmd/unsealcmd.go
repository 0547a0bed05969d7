/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

// Package unsealcmd implements the pmtunseal command tree.
package unsealcmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tink-crypto/paymentmethodtoken-go/keymanager"
	pmt "github.com/tink-crypto/paymentmethodtoken-go/paymentmethodtoken"
	"github.com/tink-crypto/paymentmethodtoken-go/paymentmethodtoken/log"
)

var logger = log.New("pmtunseal")

type options struct {
	protocolVersion string
	recipientID     string
	senderID        string
	recipientKey    string
	trustedKeysJSON string
	fetchKeys       bool
	input           string
}

// New builds the root pmtunseal command.
func New() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "pmtunseal",
		Short: "Unseal a Google Payment Method Token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.protocolVersion, "protocol-version", string(pmt.ECv1), "protocol version of the sealed message (ECv1 or ECv2)")
	cmd.Flags().StringVar(&opts.recipientID, "recipient-id", "", "recipient id the envelope must have been sealed for (required)")
	cmd.Flags().StringVar(&opts.senderID, "sender-id", pmt.GoogleSenderID, "sender id the envelope must have been sealed by")
	cmd.Flags().StringVar(&opts.recipientKey, "recipient-key", "", "path to a file containing a base64 PKCS8 EC private key")
	cmd.Flags().StringVar(&opts.trustedKeysJSON, "trusted-keys-json", "", "path to a file containing Google's trusted-signing-keys JSON document")
	cmd.Flags().BoolVar(&opts.fetchKeys, "fetch-keys", false, "fetch trusted signing keys live from Google instead of --trusted-keys-json")
	cmd.Flags().StringVar(&opts.input, "input", "-", "path to the sealed token, or - to read from stdin")

	return cmd
}

func run(ctx context.Context, opts *options, out io.Writer) error {
	recipient, err := buildRecipient(opts)
	if err != nil {
		return err
	}

	sealed, err := readInput(opts.input)
	if err != nil {
		return fmt.Errorf("pmtunseal: failed to read input: %w", err)
	}

	plaintext, err := recipient.UnsealContext(ctx, sealed)
	if err != nil {
		logger.Errorf("unseal failed: %v", err)

		if pmtErr, ok := err.(*pmt.Error); ok {
			return fmt.Errorf("unseal failed (%s): %w", pmtErr.Kind, err)
		}

		return err
	}

	fmt.Fprintln(out, plaintext)

	return nil
}

func buildRecipient(opts *options) (*pmt.Recipient, error) {
	if opts.recipientID == "" {
		return nil, fmt.Errorf("pmtunseal: --recipient-id is required")
	}

	builder := pmt.NewBuilder().
		ProtocolVersion(pmt.ProtocolVersion(opts.protocolVersion)).
		RecipientID(opts.recipientID).
		SenderID(opts.senderID)

	switch {
	case opts.fetchKeys:
		mgr, err := keymanager.New(keymanager.DefaultConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("pmtunseal: failed to construct key manager: %w", err)
		}

		builder = builder.FetchSenderVerifyingKeysWith(mgr)
	case opts.trustedKeysJSON != "":
		doc, err := os.ReadFile(opts.trustedKeysJSON)
		if err != nil {
			return nil, fmt.Errorf("pmtunseal: failed to read --trusted-keys-json: %w", err)
		}

		builder = builder.SenderVerifyingKeysJSON(string(doc))
	default:
		return nil, fmt.Errorf("pmtunseal: one of --fetch-keys or --trusted-keys-json is required")
	}

	if opts.recipientKey == "" {
		return nil, fmt.Errorf("pmtunseal: --recipient-key is required")
	}

	keyBytes, err := os.ReadFile(opts.recipientKey)
	if err != nil {
		return nil, fmt.Errorf("pmtunseal: failed to read --recipient-key: %w", err)
	}

	builder = builder.AddRecipientPrivateKey(string(keyBytes))

	return builder.Build()
}

func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}

	b, err := os.ReadFile(path)

	return string(b), err
}
