package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from the terminal. Passwords are read without echo
// when stdin is a terminal.
type Prompter struct {
	reader       *bufio.Reader
	out          io.Writer
	readPassword func() ([]byte, error)
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{reader: bufio.NewReader(in), out: out}
	p.readPassword = p.terminalPassword
	return p
}

func (p *Prompter) terminalPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := p.readLine()
		return []byte(line), err
	}
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	return pw, err
}

// readLine returns the next line without its line ending. A final line without
// a newline is returned before io.EOF.
func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Line prints prompt and reads one trimmed line.
func (p *Prompter) Line(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}
	line, err := p.readLine()
	return strings.TrimSpace(line), err
}

// Required repeats the prompt until a non-empty answer is given.
func (p *Prompter) Required(prompt string) (string, error) {
	for {
		answer, err := p.Line(prompt)
		if err != nil || answer != "" {
			return answer, err
		}
	}
}

func (p *Prompter) Password(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}
	pw, err := p.readPassword()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// Confirm asks a yes/no question. Anything but y or yes declines.
func (p *Prompter) Confirm(_ context.Context, prompt string) bool {
	answer, err := p.Line(prompt + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}
