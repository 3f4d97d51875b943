package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/searchscroll/internal/auth"
	"github.com/ibeckermayer/searchscroll/internal/params"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored credentials and sessions",
	Long: `Manage the Twitter password kept in the system keyring and the browser
session cookies kept between runs.`,
}

var rememberCmd = &cobra.Command{
	Use:   "remember <username>",
	Short: "Store the password for an account in the system keyring",
	Long: `Prompt for the password of a Twitter account and store it in the system
keyring, so scrape and watch can log in without asking.`,
	Example: `  searchscroll auth remember myaccount`,
	Args:    cobra.ExactArgs(1),
	RunE:    runRemember,
}

var forgetCmd = &cobra.Command{
	Use:   "forget <username>",
	Short: "Remove an account's password from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored browser session cookies",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(rememberCmd)
	authCmd.AddCommand(forgetCmd)
	authCmd.AddCommand(logoutCmd)
}

func runRemember(cmd *cobra.Command, args []string) error {
	username := args[0]

	prompter := params.NewPrompter(os.Stdin, os.Stderr)
	password, err := prompter.AskSecret(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return auth.ErrMissingCredentials
	}

	if err := auth.NewSecretStore().Set(username, password); err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s password for %s stored in the system keyring\n", green("Saved:"), username)
	return nil
}

func runForget(cmd *cobra.Command, args []string) error {
	if err := auth.NewSecretStore().Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Removed password for %s\n", args[0])
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	path, err := auth.DefaultCookieStorePath()
	if err != nil {
		return fmt.Errorf("failed to get cookie store path: %w", err)
	}
	if err := auth.NewCookieStore(path).Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Stored session cleared")
	return nil
}
