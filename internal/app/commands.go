package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/session"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errSignedOut = errors.New("not signed in, use 'login' first")

// public marks commands that work without a session.
var public = map[string]string{"public": "true"}

// rootCommand builds a fresh command tree for one line of input, so flag values
// never leak from one command to the next.
func (a *Application) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "timesheets",
		Short:             "Highspring timesheets",
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["public"] == "" && !a.deps.Session.Authenticated() {
				return errSignedOut
			}
			return nil
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.out)
	root.SetHelpCommand(&cobra.Command{
		Use:         "help [command]",
		Short:       "Help about any command",
		Annotations: public,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _, err := root.Find(args)
			if err != nil || target == nil {
				target = root
			}
			return target.Help()
		},
	})

	root.AddCommand(a.loginCommand(), a.registerCommand(), a.logoutCommand(), a.whoamiCommand())
	root.AddCommand(a.weekCommands()...)
	root.AddCommand(
		a.entryCommand(),
		a.approvalCommand(),
		a.notificationCommand(),
		a.reportCommand(),
		a.userCommand(),
		a.teamCommand(),
		a.projectCommand(),
		a.holidayCommand(),
		a.settingsCommand(),
	)
	return root
}

func (a *Application) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "login [email]",
		Short:       "Sign in",
		Args:        cobra.MaximumNArgs(1),
		Annotations: public,
		RunE: func(cmd *cobra.Command, args []string) error {
			var email string
			var err error
			if len(args) == 1 {
				email = args[0]
			} else if email, err = a.prompt.Required("Email: "); err != nil {
				return err
			}
			password, err := a.prompt.Password("Password: ")
			if err != nil {
				return err
			}

			signedIn, err := a.deps.Session.Login(cmd.Context(), email, password)
			if err != nil {
				a.authFailed(err, "Login failed")
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s (%s).\n", signedIn.Name, roleLabel(signedIn.Role))
			return nil
		},
	}
}

func (a *Application) registerCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "register",
		Short:       "Create an organization and its administrator account",
		Args:        cobra.NoArgs,
		Annotations: public,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req session.RegisterRequest
			var err error
			if req.OrganisationName, err = a.prompt.Required("Organization name: "); err != nil {
				return err
			}
			if req.Name, err = a.prompt.Required("Your name: "); err != nil {
				return err
			}
			if req.Email, err = a.prompt.Required("Email: "); err != nil {
				return err
			}
			if req.Password, err = a.prompt.Password("Password (at least 8 characters): "); err != nil {
				return err
			}

			admin, err := a.deps.Session.Register(cmd.Context(), req)
			if err != nil {
				a.authFailed(err, "Registration failed")
				return err
			}
			a.deps.Notifier.Notify(toast.LevelSuccess, fmt.Sprintf("Organization %s created", req.OrganisationName))
			fmt.Fprintf(a.out, "Signed in as %s (%s).\n", admin.Name, roleLabel(admin.Role))
			return nil
		},
	}
}

func (a *Application) authFailed(err error, fallback string) {
	if errors.Is(err, validator.ErrInvalid) {
		toast.Invalid(a.deps.Notifier, err)
		return
	}
	toast.Failure(a.deps.Notifier, err, fallback)
}

func (a *Application) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Sign out",
		Args:        cobra.NoArgs,
		Annotations: public,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.deps.Session.Logout(cmd.Context()); err != nil {
				log.Warnf("signed out locally: %v", err)
			}
			a.deps.Notifier.Notify(toast.LevelInfo, "Logged out successfully")
			return nil
		},
	}
}

func (a *Application) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and what they may do",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.deps.Session.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s>, %s\n", current.Name, current.Email, roleLabel(current.Role))
			if caps := capabilityNames(current.Capabilities()); len(caps) > 0 {
				fmt.Fprintf(a.out, "May: %s\n", strings.Join(caps, ", "))
			}
			return nil
		},
	}
}

func roleLabel(role user.Role) string {
	lower := strings.ToLower(string(role))
	if lower == "" {
		return ""
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func capabilityNames(c user.Capabilities) []string {
	var names []string
	for _, capability := range []struct {
		allowed bool
		name    string
	}{
		{c.CanApprove, "approve timesheets"},
		{c.CanViewReports, "view reports"},
		{c.CanConfigure, "change settings"},
		{c.CanManageUsers, "manage users"},
		{c.CanAssignRoles, "assign roles"},
		{c.CanManageProjects, "manage projects"},
		{c.CanManageHolidays, "manage holidays"},
		{c.CanExportForOthers, "export timesheets of others"},
	} {
		if capability.allowed {
			names = append(names, capability.name)
		}
	}
	return names
}
