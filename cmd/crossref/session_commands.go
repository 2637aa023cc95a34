package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"crossref/internal/credentials"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect the Nebula session and manage the stored credential",
	}

	sessionCmd.AddCommand(newSessionTokenCommand(ctx))
	sessionCmd.AddCommand(newSessionSetCredentialCommand(ctx))
	sessionCmd.AddCommand(newSessionClearCredentialCommand(ctx))

	return sessionCmd
}

func newSessionTokenCommand(ctx *commandContext) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain a bearer token and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			token, err := eng.Session.Token(cmd.Context())
			if err != nil {
				return err
			}
			status := eng.Session.Status()
			if ctx.jsonOutput() {
				return writeJSON(cmd, struct {
					Token   string `json:"token"`
					Session any    `json:"session"`
				}{Token: token, Session: status})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, token)
			if verbose {
				fmt.Fprintf(out, "Anonymous: %s\n", yesNo(status.Anonymous))
				fmt.Fprintf(out, "Refreshes: %d\n", status.Refreshes)
				if !status.RefreshedAt.IsZero() {
					fmt.Fprintf(out, "Refreshed: %s\n", status.RefreshedAt.Format(time.RFC3339))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show session details")
	return cmd
}

func newSessionSetCredentialCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-credential [credential]",
		Short: "Store the Nebula credential (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Nebula.CredentialFile) == "" {
				return fmt.Errorf("nebula.credential_file is not configured")
			}
			var blob string
			if len(args) == 1 {
				blob = args[0]
			} else {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					blob = scanner.Text()
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read credential: %w", err)
				}
			}
			if strings.TrimSpace(blob) == "" {
				return fmt.Errorf("credential is empty")
			}
			source := credentials.NewFileSource(cfg.Nebula.CredentialFile)
			if err := source.Save(blob); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored Nebula credential in %s\n", source.Path())
			if cfg.Nebula.Credential != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Note: nebula.credential (or NEBULA_API_TOKEN) is set and takes precedence over the file")
			}
			return nil
		},
	}
}

func newSessionClearCredentialCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-credential",
		Short: "Remove the stored Nebula credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source := credentials.NewFileSource(cfg.Nebula.CredentialFile)
			if err := source.Save(""); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed Nebula credential from %s\n", source.Path())
			return nil
		},
	}
}
