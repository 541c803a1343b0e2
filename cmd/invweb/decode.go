package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/invweb/pkg/authz"
	"github.com/aussiebroadwan/invweb/pkg/tokenx"
)

// decodedToken is what `invweb decode` prints.
type decodedToken struct {
	Subject       string            `json:"sub"`
	Username      string            `json:"preferred_username,omitempty"`
	Name          string            `json:"name,omitempty"`
	Email         string            `json:"email,omitempty"`
	Roles         []string          `json:"roles"`
	IssuedAt      *time.Time        `json:"iat,omitempty"`
	ExpiresAt     *time.Time        `json:"exp,omitempty"`
	Authenticated bool              `json:"authenticated"`
	Permissions   authz.Permissions `json:"permissions"`
}

func decodeCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "decode <token>",
		Short: "Print the claims of an access token",
		Long: `Print the claims of an access token without verifying its signature,
the same way the gateway reads them to build the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if raw {
				pc, ok := tokenx.DecodeRaw(args[0])
				if !ok {
					return errors.New("not a decodable token")
				}
				return enc.Encode(pc)
			}

			c, ok := tokenx.Decode(args[0])
			if !ok {
				return errors.New("not a decodable token")
			}

			authenticated := authz.IsAuthenticated(args[0], time.Now())
			out := decodedToken{
				Subject:       c.Subject,
				Username:      c.PreferredUsername,
				Name:          c.Name,
				Email:         c.Email,
				Roles:         tokenx.RoleNames(c.Roles),
				Authenticated: authenticated,
				Permissions:   authz.PermissionsFor(authenticated, c.Roles),
			}
			if !c.IssuedAt.IsZero() {
				out.IssuedAt = &c.IssuedAt
			}
			if !c.ExpiresAt.IsZero() {
				out.ExpiresAt = &c.ExpiresAt
			}

			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encode claims: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the provider claim layout untouched")

	return cmd
}
