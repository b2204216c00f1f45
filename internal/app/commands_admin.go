package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/highspring/timesheets/pkg/calendar"
	"github.com/highspring/timesheets/pkg/project"
	"github.com/highspring/timesheets/pkg/settings"
	"github.com/highspring/timesheets/pkg/user"
	"github.com/spf13/cobra"
)

func (a *Application) userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "user",
		Aliases: []string{"users"},
		Short:   "Manage the people of your organization",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.deps.UserService.List(cmd.Context())
			if err != nil {
				return err
			}
			return renderUsers(a.out, users)
		},
	}

	var create user.CreateUserRequest
	var role string
	add := &cobra.Command{
		Use:   "add <name> <email>",
		Short: "Invite a user, prompting for their initial password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			create.Name, create.Email = args[0], args[1]
			create.Role = user.Role(strings.ToUpper(role))
			password, err := a.prompt.Password("Initial password: ")
			if err != nil {
				return err
			}
			create.Password = password
			created, err := a.deps.UserService.Create(cmd.Context(), create)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "User %d created.\n", created.Id)
			return nil
		},
	}
	add.Flags().StringVar(&role, "role", string(user.RoleEmployee), "EMPLOYEE, MANAGER or ADMIN")
	add.Flags().StringVar(&create.Department, "department", "", "department")
	add.Flags().IntSliceVar(&create.ManagerIds, "manager", nil, "manager user ids")

	var name, email, department, newRole, status string
	var managers []int
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a user's details, role or managers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}
			var req user.UpdateUserRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("email") {
				req.Email = &email
			}
			if flags.Changed("department") {
				req.Department = &department
			}
			if flags.Changed("role") {
				r := user.Role(strings.ToUpper(newRole))
				req.Role = &r
			}
			if flags.Changed("status") {
				s := user.Status(strings.ToUpper(status))
				req.Status = &s
			}
			if flags.Changed("manager") {
				req.ManagerIds = managers
			}
			_, err = a.deps.UserService.Update(cmd.Context(), id, req)
			return err
		},
	}
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().StringVar(&email, "email", "", "new email")
	update.Flags().StringVar(&department, "department", "", "new department")
	update.Flags().StringVar(&newRole, "role", "", "EMPLOYEE, MANAGER or ADMIN")
	update.Flags().StringVar(&status, "status", "", "ACTIVE or INACTIVE")
	update.Flags().IntSliceVar(&managers, "manager", nil, "manager user ids")

	deactivate := &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}
			return a.deps.UserService.Delete(cmd.Context(), id)
		},
	}

	cmd.AddCommand(list, add, update, deactivate)
	return cmd
}

func (a *Application) teamCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "team",
		Short: "Show your managers and direct reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			managers, err := a.deps.UserService.MyManagers(ctx)
			if err != nil {
				return err
			}
			reports, err := a.deps.UserService.MyReports(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Managers:")
			if err := renderUsers(a.out, managers); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Reports:")
			return renderUsers(a.out, reports)
		},
	}
}

func (a *Application) projectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage projects",
	}

	var selectable bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			load := a.deps.ProjectService.List
			if selectable {
				load = a.deps.ProjectService.Selectable
			}
			projects, err := load(cmd.Context())
			if err != nil {
				return err
			}
			return renderProjects(a.out, projects)
		},
	}
	list.Flags().BoolVar(&selectable, "selectable", false, "only projects new rows may use")

	var create project.CreateRequest
	add := &cobra.Command{
		Use:   "add <code> <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			create.Code, create.Name = args[0], args[1]
			created, err := a.deps.ProjectService.Create(cmd.Context(), create)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Project %d created.\n", created.Id)
			return nil
		},
	}
	add.Flags().StringVar(&create.Client, "client", "", "client name")
	add.Flags().Float64Var(&create.BudgetHours, "budget", 0, "budget in hours, 0 for none")
	add.Flags().IntSliceVar(&create.ManagerIds, "manager", nil, "manager user ids")

	var code, name, client, status string
	var budget float64
	var managers []int
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a project, e.g. --status INACTIVE to retire it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}
			var req project.UpdateRequest
			flags := cmd.Flags()
			if flags.Changed("code") {
				req.Code = &code
			}
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("client") {
				req.Client = &client
			}
			if flags.Changed("budget") {
				req.BudgetHours = &budget
			}
			if flags.Changed("status") {
				s := project.Status(strings.ToUpper(status))
				req.Status = &s
			}
			if flags.Changed("manager") {
				req.ManagerIds = managers
			}
			_, err = a.deps.ProjectService.Update(cmd.Context(), id, req)
			return err
		},
	}
	update.Flags().StringVar(&code, "code", "", "new code")
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().StringVar(&client, "client", "", "new client")
	update.Flags().Float64Var(&budget, "budget", 0, "new budget in hours")
	update.Flags().StringVar(&status, "status", "", "ACTIVE or INACTIVE")
	update.Flags().IntSliceVar(&managers, "manager", nil, "manager user ids")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project without logged hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}
			if !a.prompt.Confirm(cmd.Context(), fmt.Sprintf("Delete project %d?", id)) {
				fmt.Fprintln(a.out, "Cancelled.")
				return nil
			}
			return a.deps.ProjectService.Delete(cmd.Context(), id)
		},
	}

	cmd.AddCommand(list, add, update, remove)
	return cmd
}

func (a *Application) holidayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "holiday",
		Aliases: []string{"holidays"},
		Short:   "Manage the organization's holidays",
	}

	list := &cobra.Command{
		Use:   "list [year]",
		Short: "List the holidays of a year",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year := a.deps.Clock.Now().Year()
			if len(args) == 1 {
				var err error
				if year, err = strconv.Atoi(args[0]); err != nil {
					return fmt.Errorf("invalid year %q", args[0])
				}
			}
			holidays, err := a.deps.CalendarService.Holidays(cmd.Context(), year)
			if err != nil {
				return err
			}
			return renderHolidays(a.out, holidays)
		},
	}

	var recurring bool
	add := &cobra.Command{
		Use:   "add <yyyy-mm-dd> <name>",
		Short: "Add a holiday",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.deps.CalendarService.CreateHoliday(cmd.Context(), calendar.CreateHolidayRequest{
				Date:      args[0],
				Name:      strings.Join(args[1:], " "),
				Recurring: recurring,
			})
			return err
		},
	}
	add.Flags().BoolVar(&recurring, "recurring", false, "repeat every year")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a holiday",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}
			return a.deps.CalendarService.DeleteHoliday(cmd.Context(), id)
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func (a *Application) settingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the organization settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.deps.SettingsService.Get(cmd.Context())
			if err != nil {
				return err
			}
			return renderSettings(a.out, current)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting, e.g. set standardHours 7.5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := settingsUpdate(args[0], args[1])
			if err != nil {
				return err
			}
			_, err = a.deps.SettingsService.Update(cmd.Context(), req)
			return err
		},
	})
	return cmd
}

// settingsUpdate turns one key and value, named as 'settings' shows them, into an
// update request.
func settingsUpdate(key, value string) (settings.UpdateRequest, error) {
	var req settings.UpdateRequest
	number := func(target **float64) error {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number", key)
		}
		*target = &v
		return nil
	}
	flag := func(target **bool) error {
		v, err := parseSwitch(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*target = &v
		return nil
	}

	var err error
	switch strings.ToLower(key) {
	case "workweekstart":
		v := strings.ToLower(value)
		req.WorkWeekStart = &v
	case "standardhours":
		err = number(&req.StandardHours)
	case "timeformat":
		v := strings.ToLower(value)
		req.TimeFormat = &v
	case "timeincrement":
		v, convErr := strconv.Atoi(value)
		if convErr != nil {
			return req, fmt.Errorf("%s must be a whole number of minutes", key)
		}
		req.TimeIncrement = &v
	case "maxhoursperday":
		err = number(&req.MaxHoursPerDay)
	case "maxhoursperweek":
		err = number(&req.MaxHoursPerWeek)
	case "requireapproval":
		err = flag(&req.RequireApproval)
	case "allowbackdated":
		err = flag(&req.AllowBackdated)
	case "enableovertime":
		err = flag(&req.EnableOvertime)
	case "mandatorydesc":
		err = flag(&req.MandatoryDesc)
	case "allowcopyweek":
		err = flag(&req.AllowCopyWeek)
	case "dailyremindertime":
		req.DailyReminderTime = &value
	case "weeklydeadline":
		v := strings.ToLower(value)
		req.WeeklyDeadline = &v
	default:
		return req, fmt.Errorf("unknown setting %q", key)
	}
	return req, err
}
