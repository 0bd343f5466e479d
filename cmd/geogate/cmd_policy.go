package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidahmann/geogate/internal/policy"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect policy files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <policy_path>",
		Short: "Validate a policy file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := policy.LoadPolicy(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok policy_id=%s policy_version=%s policy_hash=%s\n",
				loaded.Policy.PolicyID, loaded.Policy.PolicyVersion, loaded.Hash)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "hash [policy_path]",
		Short: "Print the content hash of a policy (built-in when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded := policy.Builtin()
			if len(args) == 1 {
				var err error
				if loaded, err = policy.LoadPolicy(args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), loaded.Hash)
			return nil
		},
	})
	return cmd
}
