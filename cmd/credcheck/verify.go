package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/credcheck/internal/application"
)

// errRejected is returned when a verification completed but did not pass.
var errRejected = errors.New("certificate verification rejected")

type verifyOptions struct {
	certificate string
	credential  string
	title       string
	strict      bool
}

func newVerifyCmd(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify one certificate image",
		Long: "Runs the extraction battery over a certificate image, matches the credential id and verifies the " +
			"skill title. The VerificationResult is printed as JSON.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.certificate, "certificate", "f", "", "Path to the certificate image (required)")
	cmd.Flags().StringVarP(&opts.credential, "credential", "i", "", "Claimed credential id (required)")
	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Claimed skill title (required)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with an error when the verification does not pass")

	for _, name := range []string{"certificate", "credential", "title"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}
	return cmd
}

func runVerify(cmd *cobra.Command, root *rootOptions, opts *verifyOptions) error {
	env, err := setup(root)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	coordinator, err := application.Build(cmd.Context(), env.cfg, nil, env.logger, env.metrics)
	if err != nil {
		return fmt.Errorf("failed to build verification pipeline: %w", err)
	}

	result, verifyErr := coordinator.VerifyCertificateCredential(cmd.Context(), opts.certificate, opts.credential, opts.title)
	if result != nil {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	if verifyErr != nil {
		return verifyErr
	}
	if opts.strict && !result.Success {
		return errRejected
	}
	return nil
}
