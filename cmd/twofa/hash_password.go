package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/layer-3/twofa/adapters/accounts"
	"github.com/spf13/cobra"
)

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password for the accounts file",
		Long:  `Prints the bcrypt hash of a password. Without an argument the password is read from the first line of stdin.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			if password == "" {
				return errors.New("empty password")
			}

			hashed, err := accounts.HashPassword(password)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return err
		},
	}
}
