package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/ihealth-mcp/internal/app"
	"github.com/florianilch/ihealth-mcp/internal/credentials"
	"github.com/florianilch/ihealth-mcp/internal/tools"
)

func credentialsCommand() *cli.Command {
	return &cli.Command{
		Name:  "credentials",
		Usage: "manage F5 iHealth API client credentials",
		Commands: []*cli.Command{
			{
				Name:   "store",
				Usage:  "prompt for client ID and secret and save them to the configured storage",
				Action: credentialsStoreAction,
			},
			{
				Name:  "check",
				Usage: "verify that the configured credentials obtain a token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "auth--token-url",
						Usage: "OAuth2 token endpoint",
						Value: app.DefaultConfigAuthTokenURL,
					},
				},
				Action: credentialsCheckAction,
			},
		},
	}
}

func credentialsStoreAction(ctx context.Context, cmd *cli.Command) error {
	cfg, flush, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer flush()

	if cfg.Credentials.Storage == app.CredentialStorageEnv {
		return errors.New("env storage is read-only, set credentials.storage to file or keyring")
	}

	store, err := cfg.Credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to create credentials store: %w", err)
	}

	creds, err := promptCredentials(os.Stdin, os.Stderr)
	if err != nil {
		return err
	}

	if err := store.Write(ctx, creds); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	fmt.Fprintf(cmd.Root().ErrWriter, "credentials stored in %s storage\n", cfg.Credentials.Storage)
	return nil
}

func credentialsCheckAction(ctx context.Context, cmd *cli.Command) error {
	cfg, flush, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer flush()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	result := application.Tools().ValidateCredentials(ctx, tools.NoInput{})
	if result.IsError {
		return errors.New(strings.TrimPrefix(result.Text, "Error: "))
	}

	fmt.Fprintln(cmd.Root().Writer, result.Text)
	return nil
}

// promptCredentials reads the client ID and secret. On a terminal the secret
// is read without echo; otherwise both are read as lines from in.
func promptCredentials(in *os.File, prompt io.Writer) (credentials.Credentials, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return readCredentials(in)
	}

	reader := bufio.NewReader(in)
	fmt.Fprint(prompt, "Client ID: ")
	id, err := reader.ReadString('\n')
	if err != nil {
		return credentials.Credentials{}, fmt.Errorf("reading client ID: %w", err)
	}

	fmt.Fprint(prompt, "Client secret: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return credentials.Credentials{}, fmt.Errorf("reading client secret: %w", err)
	}

	return checkCredentials(credentials.Credentials{
		ClientID:     strings.TrimSpace(id),
		ClientSecret: strings.TrimSpace(string(secret)),
	})
}

// readCredentials reads "client ID" and "client secret" lines from r.
func readCredentials(r io.Reader) (credentials.Credentials, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for len(lines) < 2 && scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return credentials.Credentials{}, fmt.Errorf("reading credentials: %w", err)
	}
	for len(lines) < 2 {
		lines = append(lines, "")
	}

	return checkCredentials(credentials.Credentials{ClientID: lines[0], ClientSecret: lines[1]})
}

func checkCredentials(creds credentials.Credentials) (credentials.Credentials, error) {
	if !creds.Complete() {
		return credentials.Credentials{}, errors.New("client ID and client secret must not be empty")
	}
	return creds, nil
}
