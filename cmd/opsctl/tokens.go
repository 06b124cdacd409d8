package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/carestaff-backend/pkg/auth"
	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

type tokenService interface {
	Mint(ctx context.Context, payload auth.AccessTokenPayload) (auth.Issued, error)
	Revoke(ctx context.Context, accessID string) error
}

type sessionRegistry interface {
	Register(ctx context.Context, issued auth.Issued, subject string) error
	Revoke(ctx context.Context, accessID string) error
}

// tokenMinter signs a token and allow-lists its jti. A token whose registration
// fails is never printed, since the API would reject it anyway.
type tokenMinter struct {
	cfg      config.JWTConfig
	sessions sessionRegistry
	now      func() time.Time
}

func (m tokenMinter) Mint(ctx context.Context, payload auth.AccessTokenPayload) (auth.Issued, error) {
	issued, err := auth.Issue(m.cfg, m.now(), payload)
	if err != nil {
		return auth.Issued{}, err
	}
	if err := m.sessions.Register(ctx, issued, payload.UserID.String()); err != nil {
		return auth.Issued{}, fmt.Errorf("register session: %w", err)
	}
	return issued, nil
}

func (m tokenMinter) Revoke(ctx context.Context, accessID string) error {
	return m.sessions.Revoke(ctx, accessID)
}

func (c *cli) tokenCmd() *cobra.Command {
	token := &cobra.Command{Use: "token", Short: "Mint and revoke API access tokens"}

	var (
		role   string
		userID string
		jti    string
		ttl    time.Duration
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Issue an access token and register its session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedRole, err := enums.ParseActorRole(role)
			if err != nil {
				return fmt.Errorf("invalid --role: %w", err)
			}
			payload := auth.AccessTokenPayload{Role: parsedRole, JTI: jti, TTL: ttl, UserID: uuid.New()}
			if userID != "" {
				if payload.UserID, err = uuid.Parse(userID); err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
			}
			scope, err := c.scope()
			if err != nil {
				return err
			}
			payload.AgencyID = scope.AgencyID

			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			issued, err := a.Tokens.Mint(cmd.Context(), payload)
			if err != nil {
				return err
			}
			return c.print(issued, func(w io.Writer) { renderIssued(w, issued, payload) })
		},
	}
	mint.Flags().StringVar(&role, "role", string(enums.ActorRoleSystem), "system or agency_admin")
	mint.Flags().StringVar(&userID, "user", "", "user id to embed, random when empty")
	mint.Flags().StringVar(&jti, "jti", "", "token id, random when empty")
	mint.Flags().DurationVar(&ttl, "ttl", 0, "lifetime, defaults to the configured JWT expiration")

	revoke := &cobra.Command{
		Use:   "revoke <jti>",
		Short: "Remove a token's session so the API rejects it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Tokens.Revoke(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "token %s revoked\n", args[0])
			return nil
		},
	}

	token.AddCommand(mint, revoke)
	return token
}

func renderIssued(w io.Writer, issued auth.Issued, payload auth.AccessTokenPayload) {
	tw := newTable(w, table.Row{"Field", "Value"})
	tw.AppendRow(table.Row{"JTI", issued.ID})
	tw.AppendRow(table.Row{"Role", payload.Role})
	tw.AppendRow(table.Row{"User", payload.UserID})
	if payload.AgencyID != nil {
		tw.AppendRow(table.Row{"Agency", *payload.AgencyID})
	}
	tw.AppendRow(table.Row{"Expires", issued.ExpiresAt.UTC().Format(time.RFC3339)})
	tw.Render()
	fmt.Fprintln(w, issued.Token)
}
