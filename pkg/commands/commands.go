// Package commands implements the maintenance subcommands run from the CLI.
package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"watchlist/pkg/models"
	"watchlist/pkg/store"

	"golang.org/x/term"
)

var (
	ErrEmptyUsername = errors.New("username must not be empty")
	ErrEmptyPassword = errors.New("password must not be empty")
	ErrLongUsername  = fmt.Errorf("username must be at most %d characters", models.MaxUsernameLen)
)

// InitDB creates the tables, dropping them first when drop is set.
func InitDB(ctx context.Context, st *store.Store, drop bool, out io.Writer) error {
	if err := st.Init(ctx, drop); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	fmt.Fprintln(out, "Initialized database.")
	return nil
}

// Forge fills the database with the demo user and movies.
func Forge(ctx context.Context, st *store.Store, out io.Writer) error {
	if err := st.Forge(ctx); err != nil {
		return fmt.Errorf("forge: %w", err)
	}
	fmt.Fprintln(out, "Done.")
	return nil
}

// Prompter asks for values the caller did not pass as flags.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// readPassword reads one line without echo.
	readPassword func() (string, error)
}

// NewPrompter returns a prompter on the process terminal. Password input is
// hidden when stdin is a terminal.
func NewPrompter() *Prompter {
	p := &Prompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		p.readPassword = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(p.out)
			return string(b), err
		}
	}
	return p
}

// NewPrompterWith builds a prompter over arbitrary streams. Passwords are
// read as plain lines.
func NewPrompterWith(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Line prints label and returns the next input line without its newline.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Prompter) hidden(label string) (string, error) {
	if p.readPassword == nil {
		return p.Line(label)
	}
	fmt.Fprintf(p.out, "%s: ", label)
	return p.readPassword()
}

// Password asks for a password twice and repeats until both entries match.
func (p *Prompter) Password(label string) (string, error) {
	for {
		first, err := p.hidden(label)
		if err != nil {
			return "", err
		}
		second, err := p.hidden("Repeat for confirmation")
		if err != nil {
			return "", err
		}
		if first == second {
			return first, nil
		}
		fmt.Fprintln(p.out, "Error: The two entered values do not match.")
	}
}

// Admin creates or updates the login credential. Empty username or password
// values are prompted for.
func Admin(ctx context.Context, st *store.Store, p *Prompter, username, password string) error {
	var err error
	if username == "" {
		if username, err = p.Line("Username"); err != nil {
			return fmt.Errorf("read username: %w", err)
		}
	}
	if password == "" {
		if password, err = p.Password("Password"); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	switch {
	case username == "":
		return ErrEmptyUsername
	case utf8.RuneCountInString(username) > models.MaxUsernameLen:
		return ErrLongUsername
	case password == "":
		return ErrEmptyPassword
	}

	created, err := st.UpsertAdmin(ctx, username, password)
	if err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	if created {
		fmt.Fprintln(p.out, "Creating user...")
	} else {
		fmt.Fprintln(p.out, "Updating user...")
	}
	fmt.Fprintln(p.out, "Done.")
	return nil
}
