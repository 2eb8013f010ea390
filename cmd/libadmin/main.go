package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

type rootFlags struct {
	configPath string
	apiURL     string
	name       string
	password   string
}

func main() {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "libadmin",
		Short:         "Book-Club Library admin client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "Backend API base URL (overrides API_BASE_URL)")
	rootCmd.PersistentFlags().StringVarP(&flags.name, "name", "u", "", "Librarian name")
	rootCmd.PersistentFlags().StringVarP(&flags.password, "password", "p", os.Getenv("LIBADMIN_PASSWORD"), "Librarian password (defaults to $LIBADMIN_PASSWORD)")

	rootCmd.AddCommand(loginCmd(flags))
	rootCmd.AddCommand(whoamiCmd(flags))
	rootCmd.AddCommand(dashboardCmd(flags))
	rootCmd.AddCommand(overdueCmd(flags))
	rootCmd.AddCommand(consoleCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
