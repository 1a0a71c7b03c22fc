package command

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// terminalFd returns the descriptor of r when it is an interactive terminal.
func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// passphrase returns --passphrase, or reads it from the terminal without
// echo. confirm asks a second time and requires both to match.
func passphrase(c *cli.Context, confirm bool) ([]byte, error) {
	if p := c.String("passphrase"); p != "" {
		return []byte(p), nil
	}

	fd, ok := terminalFd(stdin(c))
	if !ok {
		return nil, errors.New("passphrase required: use --passphrase or SNAPQL_SNAPSHOT__PASSPHRASE")
	}

	first, err := readSecret(c, fd, "Passphrase (input hidden): ")
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, errors.New("passphrase cannot be empty")
	}
	if confirm {
		second, err := readSecret(c, fd, "Repeat passphrase: ")
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(first, second) {
			return nil, errors.New("passphrases do not match")
		}
	}
	return first, nil
}

func readSecret(c *cli.Context, fd int, prompt string) ([]byte, error) {
	fmt.Fprint(stderr(c), prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr(c))
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	return secret, nil
}
