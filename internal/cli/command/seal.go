package command

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapql/internal/storage/snapshot"
	"github.com/yndnr/snapql/pkg/crypto/adaptive"
)

// sqliteHeader starts every SQLite database file.
var sqliteHeader = []byte("SQLite format 3\x00")

func passphraseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "passphrase",
		Aliases: []string{"p"},
		Usage:   "Passphrase the snapshot key is derived from (prompted when omitted)",
		EnvVars: []string{"SNAPQL_SNAPSHOT__PASSPHRASE", "SNAPQL_SNAPSHOT_PASSPHRASE"},
	}
}

// SealCommand returns the seal command.
func SealCommand() *cli.Command {
	return &cli.Command{
		Name:      "seal",
		Usage:     "Encrypt a SQLite snapshot for publishing",
		ArgsUsage: "INPUT OUTPUT",
		Flags: []cli.Flag{
			passphraseFlag(),
			&cli.StringFlag{
				Name:  "cipher",
				Usage: "aes-gcm or chacha20-poly1305 (default: fastest on this machine)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Seal even if INPUT does not look like a SQLite database",
			},
		},
		Action: runSeal,
	}
}

// UnsealCommand returns the unseal command.
func UnsealCommand() *cli.Command {
	return &cli.Command{
		Name:      "unseal",
		Usage:     "Decrypt a sealed snapshot",
		ArgsUsage: "INPUT OUTPUT",
		Flags:     []cli.Flag{passphraseFlag()},
		Action:    runUnseal,
	}
}

func runSeal(c *cli.Context) error {
	in, out, err := inOut(c)
	if err != nil {
		return err
	}

	var cipherType adaptive.CipherType
	if name := c.String("cipher"); name != "" {
		if cipherType, err = adaptive.ParseType(name); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if snapshot.IsSealed(data) {
		return errors.New("input is already sealed")
	}
	if !bytes.HasPrefix(data, sqliteHeader) && !c.Bool("force") {
		return errors.New("input is not a SQLite database (use --force to seal anyway)")
	}

	secret, err := passphrase(c, true)
	if err != nil {
		return err
	}
	sealed, err := snapshot.Seal(data, secret, cipherType)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, sealed, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Fprintf(stderr(c), "sealed %s -> %s (%d bytes)\n", in, out, len(sealed))
	return nil
}

func runUnseal(c *cli.Context) error {
	in, out, err := inOut(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	secret, err := passphrase(c, false)
	if err != nil {
		return err
	}
	plain, err := snapshot.Unseal(data, secret)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, plain, 0o600); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Fprintf(stderr(c), "unsealed %s -> %s (%d bytes)\n", in, out, len(plain))
	return nil
}

func inOut(c *cli.Context) (string, string, error) {
	if c.NArg() != 2 {
		return "", "", fmt.Errorf("expected INPUT and OUTPUT, got %d arguments", c.NArg())
	}
	in, out := c.Args().Get(0), c.Args().Get(1)
	if in == out {
		return "", "", errors.New("INPUT and OUTPUT must differ")
	}
	return in, out, nil
}
