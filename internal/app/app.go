package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/highspring/timesheets/internal/config"
	"github.com/highspring/timesheets/internal/utils"
	"github.com/highspring/timesheets/pkg/timesheet"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const DefaultConfigPath = "./config/timesheets.yaml"

// Application is an interactive client session. Commands typed at the prompt
// share one signed-in session for the lifetime of the process.
type Application struct {
	cfg    config.Application
	deps   *Dependencies
	prompt *Prompter
	out    io.Writer
}

// NewApplication loads the configuration at configPath and wires the client to stdin and stdout.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Log.Level != "" {
		level, err := log.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
		}
		log.SetLevel(level)
	}
	return newApplication(cfg, utils.SystemClock{}, os.Stdin, os.Stdout)
}

func newApplication(cfg config.Application, clock utils.Clock, in io.Reader, out io.Writer) (*Application, error) {
	deps, err := BuildDependencies(cfg, clock, out)
	if err != nil {
		return nil, err
	}
	return &Application{cfg: cfg, deps: deps, prompt: NewPrompter(in, out), out: out}, nil
}

// Run restores a previous session if possible and reads commands until exit or end of input.
func (a *Application) Run(ctx context.Context) error {
	if a.deps.Session.Bootstrap(ctx) {
		current, _ := a.deps.Session.CurrentUser(ctx)
		fmt.Fprintf(a.out, "Welcome back, %s.\n", current.Name)
	} else {
		fmt.Fprintln(a.out, "Highspring timesheets. Type 'login' to sign in or 'help' for commands.")
	}

	for {
		line, err := a.prompt.Line(a.status() + "> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}
		args, err := splitLine(line)
		if err != nil {
			fmt.Fprintf(a.out, "error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(a.out, "Bye!")
			return nil
		}
		a.Execute(ctx, args)
	}
}

// Execute runs one command line. Errors the user was already notified about are
// only logged.
func (a *Application) Execute(ctx context.Context, args []string) {
	shown := a.deps.Notifier.Shown()
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, timesheet.ErrCancelled):
		fmt.Fprintln(a.out, "Cancelled.")
	case a.deps.Notifier.Shown() > shown:
		log.Debugf("%s: %v", args[0], err)
	default:
		fmt.Fprintf(a.out, "error: %v\n", err)
	}
}

// status is the prompt prefix, e.g. "bob@highspring.test 2025-W03".
func (a *Application) status() string {
	current, err := a.deps.Session.CurrentUser(context.Background())
	if err != nil {
		return "timesheets"
	}
	return fmt.Sprintf("%s %s", current.Email, a.deps.Navigator.Week())
}

// splitLine splits a command line into words. Single or double quotes group
// words, e.g. reject 12 "Missing Friday notes".
func splitLine(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inWord  bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}

// Execute is the process entry point.
func Execute() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "timesheets",
		Short:         "Highspring timesheets client",
		Long:          "An interactive client for the Highspring timesheets service: log weekly hours, submit them for approval, review your team and export reports.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := NewApplication(configPath)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", DefaultConfigPath, "path to the YAML configuration file")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
