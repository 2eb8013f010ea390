package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jrsteele09/bookclub-admin/auth"
	"github.com/jrsteele09/bookclub-admin/console"
	"github.com/jrsteele09/bookclub-admin/guard"
	"github.com/jrsteele09/bookclub-admin/internal/app"
	"github.com/jrsteele09/bookclub-admin/internal/config"
	"github.com/jrsteele09/bookclub-admin/internal/logging"
	"github.com/jrsteele09/bookclub-admin/library"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/server"
	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in: pass --name and --password")

func buildApp(flags *rootFlags, startPath string) (*app.App, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg)
	opts := []app.Option{app.WithLogger(logger), app.WithStartPath(startPath)}
	if flags.apiURL != "" {
		opts = append(opts, app.WithBaseURL(flags.apiURL))
	}
	return app.New(cfg, opts...)
}

// signIn logs in with the flag credentials, or tries to restore a session when none
// were given, then asks the guard whether path may be shown.
func signIn(ctx context.Context, a *app.App, flags *rootFlags, path string) error {
	if flags.name != "" {
		if _, err := a.Session.Login(ctx, auth.LoginRequest{Name: flags.name, Password: flags.password}); err != nil {
			return err
		}
	} else if err := a.Session.Initialize(ctx, path); err != nil {
		a.Logger.Debug().Err(err).Msg("session restore failed")
	}
	if d := a.Guard.Check(path); d.Action != guard.Render {
		return errNotSignedIn
	}
	return nil
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil {
		a.Logger.Warn().Err(err).Msg("shutdown")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loginCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the librarian credentials against the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(flags, routes.RouteLogin)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if flags.name == "" {
				return errNotSignedIn
			}
			if err := signIn(cmd.Context(), a, flags, routes.RouteDashboard); err != nil {
				return err
			}
			user := a.Session.State().User
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s> (%s)\n", user.Name, user.Email, user.Role)
			a.Session.Logout(cmd.Context())
			return nil
		},
	}
}

func whoamiCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in librarian's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(flags, routes.RouteProfile)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := signIn(cmd.Context(), a, flags, routes.RouteProfile); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.Session.State().User)
		},
	}
}

func dashboardCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show library statistics and recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(flags, routes.RouteDashboard)
			if err != nil {
				return err
			}
			defer closeApp(a)
			ctx := cmd.Context()
			if err := signIn(ctx, a, flags, routes.RouteDashboard); err != nil {
				return err
			}
			stats, err := a.Library.Stats(ctx)
			if err != nil {
				return err
			}
			activities, err := a.Library.RecentActivities(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Readers: %d  Books: %d  Lent: %d  Overdue: %d\n\n",
				stats.TotalReaders, stats.TotalBooks, stats.BooksCurrentlyLent, stats.OverdueBooks)
			for _, act := range activities {
				fmt.Fprintf(out, "%s  %s\n", act.Time.Local().Format("2006-01-02 15:04"), act.Message)
			}
			return nil
		},
	}
}

func overdueCmd(flags *rootFlags) *cobra.Command {
	var search string
	var notifyReaders bool
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List overdue books and optionally email their readers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(flags, routes.RouteOverdue)
			if err != nil {
				return err
			}
			defer closeApp(a)
			ctx := cmd.Context()
			if err := signIn(ctx, a, flags, routes.RouteOverdue); err != nil {
				return err
			}
			overdue, err := a.Library.Overdue(ctx)
			if err != nil {
				return err
			}
			items := library.FilterOverdue(overdue, search)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tREADER\tEMAIL\tDUE\tDAYS")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", it.ID, it.Book.Title, it.Reader.Name, it.Reader.Email,
					it.DueDate.Local().Format("2006-01-02"), it.DaysOverdue)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if !notifyReaders {
				return nil
			}
			readerIDs := library.UniqueReaderIDs(items)
			if len(readerIDs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No overdue readers to notify.")
				return nil
			}
			resp, err := a.Library.SendOverdueNotifications(ctx, readerIDs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by title, author, reader or transaction id")
	cmd.Flags().BoolVar(&notifyReaders, "notify", false, "Email every listed reader")
	return cmd
}

func consoleCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Serve the admin console on localhost",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(flags, routes.RouteRoot)
			if err != nil {
				return err
			}
			defer closeApp(a)
			ctx := cmd.Context()
			server.DisplayAppName(a.Config.GetAppName())

			if err := signIn(ctx, a, flags, routes.RouteRoot); err != nil {
				a.Logger.Info().Msg("no session yet, sign in at " + routes.RouteLogin)
			}
			return server.Run(ctx, "127.0.0.1"+a.Config.GetConsolePort(), console.New(a))
		},
	}
}
