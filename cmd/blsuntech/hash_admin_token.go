package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/blsuntech/internal/admintoken"
	"github.com/spf13/cobra"
)

func hashAdminTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-admin-token [token]",
		Short: "Print an argon2id hash for INTAKE_ADMIN_TOKEN_HASH",
		Long:  "Hashes the token given as an argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no token given")
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("token must not be empty")
			}

			hash, err := admintoken.Hash(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
