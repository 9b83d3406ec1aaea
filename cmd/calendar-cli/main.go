// Command calendar-cli drives the calendar assistant from a terminal: it
// manages users, authorizes Google Calendar and runs natural-language
// requests against the same services the server uses.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/calendar-assistant/backend/internal/app"
	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/config"
	"github.com/calendar-assistant/backend/internal/presenter"
	"github.com/calendar-assistant/backend/internal/storage/models"
	"github.com/calendar-assistant/backend/internal/usecase"
)

func main() {
	cliApp := &cli.App{
		Name:  "calendar-cli",
		Usage: "Manage your calendar with plain-language requests.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, EnvVars: []string{"CALENDAR_USER"}, Usage: "user id or email to act as"},
		},
		Commands: []*cli.Command{
			registerCommand(),
			usersCommand(),
			deleteUserCommand(),
			authCommand(),
			parseCommand(),
			processCommand(),
			viewCommand(),
			exportCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the shared services.
func setup(c *cli.Context) (*app.Services, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, err
	}
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	services, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return nil, config.Config{}, err
	}
	return services, cfg, nil
}

// currentUser resolves --user as a user id first, then as an email.
func currentUser(c *cli.Context, services *app.Services) (models.User, error) {
	key := strings.TrimSpace(c.String("user"))
	if key == "" {
		return models.User{}, errors.New("no user selected, pass --user or set CALENDAR_USER")
	}
	if u, ok := services.Users.GetUserByID(key); ok {
		return u, nil
	}
	u, err := services.Users.LoginUser(c.Context, key)
	if err != nil {
		return models.User{}, fmt.Errorf("user %q: %w", key, err)
	}
	return u, nil
}

// connect returns the user's gateway, failing when it holds no credential.
func connect(c *cli.Context, services *app.Services, user models.User) (calendar.UserGateway, error) {
	gateway, err := services.Connector.Connect(c.Context, user)
	if err != nil {
		return nil, err
	}
	if !gateway.Available() {
		return nil, fmt.Errorf("calendar not authorized for %s, run the auth command first", user.Email)
	}
	return gateway, nil
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Register a user, or show the existing one with that email.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username"},
			&cli.StringFlag{Name: "email", Required: true},
		},
		Action: func(c *cli.Context) error {
			services, _, err := setup(c)
			if err != nil {
				return err
			}
			defer services.Close()

			u, _, err := services.Users.RegisterUser(c.Context, c.String("username"), c.String("email"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s  %s <%s>\n", u.UserID, u.DisplayName(), u.Email)
			return nil
		},
	}
}

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "List registered users.",
		Action: func(c *cli.Context) error {
			services, _, err := setup(c)
			if err != nil {
				return err
			}
			defer services.Close()

			all := services.Users.GetAllUsers()
			if len(all) == 0 {
				fmt.Fprintln(c.App.Writer, "No users registered.")
				return nil
			}
			for _, u := range all {
				status := "not authorized"
				if u.Authenticated {
					status = "authorized"
				}
				fmt.Fprintf(c.App.Writer, "%s  %-20s %-30s %s\n", u.UserID, u.DisplayName(), u.Email, status)
			}
			return nil
		},
	}
}

func deleteUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-user",
		Usage: "Delete the selected user and their stored credentials.",
		Action: func(c *cli.Context) error {
			services, _, err := setup(c)
			if err != nil {
				return err
			}
			defer services.Close()

			u, err := currentUser(c, services)
			if err != nil {
				return err
			}
			if err := services.Users.DeleteUser(c.Context, u.UserID); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Deleted %s\n", u.Email)
			return nil
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize access to the selected user's Google Calendar.",
		Action: func(c *cli.Context) error {
			services, _, err := setup(c)
			if err != nil {
				return err
			}
			defer services.Close()

			u, err := currentUser(c, services)
			if err != nil {
				return err
			}
			gateway, err := services.Connector.Connect(c.Context, u)
			if err != nil {
				return err
			}

			authURL, err := gateway.AuthorizationURL()
			if err != nil {
				return fmt.Errorf("building authorization URL: %w", err)
			}
			state, err := stateFrom(authURL)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "Go to the following link in your browser, then paste the "+
				"authorization code from the redirect:\n%s\n\n", authURL)
			code, err := prompt(c.App.Reader, c.App.Writer, "Authorization code: ")
			if err != nil {
				return err
			}

			if err := gateway.CompleteAuthorization(c.Context, code, state); err != nil {
				return fmt.Errorf("authorizing: %s", calendar.ErrorMessage(err))
			}
			if _, err := services.Users.SetAuthenticated(c.Context, u.UserID, true); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ Calendar authorized for %s\n", u.Email)
			return nil
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Show how a request would be understood, without touching the calendar.",
		ArgsUsage: "<request>",
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("please provide an event description")
			}

			services, _, err := setup(c)
			if err != nil {
				return err
			}
			defer services.Close()

			req := services.Parser.ParseNaturalLanguage(c.Context, text)
			fmt.Fprintln(c.App.Writer, req.Summary())
			if !req.Successful {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func processCommand() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Aliases:   []string{"do"},
		Usage:     "Create, view, update or delete events from a plain-language request.",
		ArgsUsage: "<request>",
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("please provide an event description")
			}

			services, _, err := setup(c)
			if err != nil {
				return err
			}
			defer services.Close()

			u, err := currentUser(c, services)
			if err != nil {
				return err
			}
			gateway, err := connect(c, services, u)
			if err != nil {
				return err
			}

			req := services.Parser.ParseNaturalLanguage(c.Context, text)
			out := presenter.NewConsole(c.App.Writer)
			usecase.NewDispatcher(gateway, slog.Default()).Dispatch(c.Context, req, out)
			return nil
		},
	}
}

func viewCommand() *cli.Command {
	return &cli.Command{
		Name:  "view",
		Usage: "List the selected user's events on a date.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "YYYY-MM-DD, defaults to today"},
		},
		Action: func(c *cli.Context) error {
			services, cfg, err := setup(c)
			if err != nil {
				return err
			}
			defer services.Close()

			date := models.DateOf(time.Now().In(cfg.Location))
			if s := c.String("date"); s != "" {
				if date, err = models.ParseDate(s); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}

			u, err := currentUser(c, services)
			if err != nil {
				return err
			}
			gateway, err := connect(c, services, u)
			if err != nil {
				return err
			}

			req := models.EventRequest{ActionType: models.ActionView, Date: &date, Successful: true}
			usecase.NewViewEventsInteractor(gateway, presenter.NewConsole(c.App.Writer), slog.Default()).Execute(c.Context, req)
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the selected user's events as an iCalendar file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Usage: "first day, YYYY-MM-DD, defaults to today"},
			&cli.IntFlag{Name: "days", Value: 30, Usage: "number of days to include"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file, defaults to stdout"},
		},
		Action: func(c *cli.Context) error {
			services, cfg, err := setup(c)
			if err != nil {
				return err
			}
			defer services.Close()

			start := models.DateOf(time.Now().In(cfg.Location))
			if s := c.String("start"); s != "" {
				if start, err = models.ParseDate(s); err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
			}
			if c.Int("days") < 1 {
				return errors.New("--days must be at least 1")
			}
			end := start.AddDays(c.Int("days") - 1)

			u, err := currentUser(c, services)
			if err != nil {
				return err
			}
			gateway, err := connect(c, services, u)
			if err != nil {
				return err
			}

			events, err := gateway.EventsInRange(c.Context, start, end)
			if err != nil {
				return fmt.Errorf("retrieving events: %s", calendar.ErrorMessage(err))
			}

			var w io.Writer = c.App.Writer
			if path := c.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := calendar.WriteICS(w, events, cfg.Location, time.Now()); err != nil {
				return err
			}
			slog.Info("Calendar exported", "events", len(events), "from", start, "to", end)
			return nil
		},
	}
}

// stateFrom extracts the state parameter the gateway put in its consent URL.
func stateFrom(authURL string) (string, error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("parsing authorization URL: %w", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		return "", errors.New("authorization URL carries no state")
	}
	return state, nil
}

func prompt(r io.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
