/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/blacktop/pagepost/internal/account"
	"github.com/blacktop/pagepost/internal/logutil"
)

var (
	accountName  string
	accountEmail string
	accountKey   string
)

func newAccountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the local account and subscription key",
	}

	signup := &cobra.Command{
		Use:   "signup",
		Short: "Create the local account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			in, out := cmd.InOrStdin(), cmd.OutOrStdout()
			if accountName == "" {
				if accountName, err = prompt(in, out, "Name", ""); err != nil {
					return err
				}
			}
			if accountEmail == "" {
				if accountEmail, err = prompt(in, out, "Email", ""); err != nil {
					return err
				}
			}
			password, err := promptSecret(in, out, "Password")
			if err != nil {
				return err
			}
			confirmPw, err := promptSecret(in, out, "Confirm password")
			if err != nil {
				return err
			}

			user, err := account.NewStore(e.cfg.Data.Dir).SignUp(accountName, accountEmail, password, confirmPw, accountKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Account created for %s\n", newUI().ok("[OK]"), user.Email)
			return nil
		},
	}
	signup.Flags().StringVar(&accountName, "name", "", "Your name")
	signup.Flags().StringVar(&accountEmail, "email", "", "Your email")
	signup.Flags().StringVar(&accountKey, "subscription-key", "", "Subscription key to store")

	login := &cobra.Command{
		Use:   "login",
		Short: "Check the account credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			in, out := cmd.InOrStdin(), cmd.OutOrStdout()
			if accountEmail == "" {
				if accountEmail, err = prompt(in, out, "Email", ""); err != nil {
					return err
				}
			}
			password, err := promptSecret(in, out, "Password")
			if err != nil {
				return err
			}
			user, err := account.NewStore(e.cfg.Data.Dir).Authenticate(accountEmail, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Welcome, %s\n", newUI().ok("[OK]"), user.Name)
			return nil
		},
	}
	login.Flags().StringVar(&accountEmail, "email", "", "Your email")

	update := &cobra.Command{
		Use:   "update",
		Short: "Change the account name or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			store := account.NewStore(e.cfg.Data.Dir)
			current, err := store.LoadUser()
			if err != nil {
				return err
			}
			if current == nil {
				return account.ErrNoAccount
			}
			name, email := current.Name, current.Email
			if cmd.Flags().Changed("name") {
				name = accountName
			}
			if cmd.Flags().Changed("email") {
				email = accountEmail
			}
			user, err := store.UpdateProfile(name, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Profile updated: %s <%s>\n", newUI().ok("[OK]"), user.Name, user.Email)
			return nil
		},
	}
	update.Flags().StringVar(&accountName, "name", "", "New name")
	update.Flags().StringVar(&accountEmail, "email", "", "New email")

	passwd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			in, out := cmd.InOrStdin(), cmd.OutOrStdout()
			current, err := promptSecret(in, out, "Current password")
			if err != nil {
				return err
			}
			next, err := promptSecret(in, out, "New password")
			if err != nil {
				return err
			}
			confirmPw, err := promptSecret(in, out, "Confirm new password")
			if err != nil {
				return err
			}
			if err := account.NewStore(e.cfg.Data.Dir).ChangePassword(current, next, confirmPw); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Password changed\n", newUI().ok("[OK]"))
			return nil
		},
	}

	validate := &cobra.Command{
		Use:   "validate [subscription-key]",
		Short: "Check a subscription key with the service",
		Long: "validate checks the given key, or the stored one when omitted. " +
			"A key given on the command line is saved when it is valid.",
		Args: cobra.MaximumNArgs(1),
		RunE: runValidate,
	}

	cmd.AddCommand(signup, login, update, passwd, validate)
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := loadEnv()
	if err != nil {
		return err
	}
	store := account.NewStore(e.cfg.Data.Dir)

	var key string
	if len(args) > 0 {
		key = strings.TrimSpace(args[0])
	}
	if key == "" {
		if key, err = store.LoadSubscriptionKey(); err != nil {
			return err
		}
	}
	if key == "" {
		if key, err = e.pages.SubscriptionKey(ctx); err != nil {
			return err
		}
	}
	if key == "" {
		return errors.New("no subscription key given or stored")
	}

	spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
	spin.Writer = cmd.ErrOrStderr()
	spin.Suffix = " Validating subscription key..."
	spin.Start()
	valid, err := account.NewValidator(e.cfg.Account.ValidateURL, e.cfg.Account.RequestTimeout).Validate(ctx, key)
	spin.Stop()

	ui := newUI()
	out := cmd.OutOrStdout()
	if err != nil {
		fmt.Fprintf(out, "%s could not validate key: %v\n", ui.err("Error:"), err)
		return errReported
	}
	if !valid {
		fmt.Fprintf(out, "%s subscription key is not valid\n", ui.err("Error:"))
		return errReported
	}

	if len(args) > 0 {
		if err := store.SaveSubscriptionKey(key); err != nil {
			return err
		}
		logutil.Infof("stored subscription key in %s", e.cfg.Data.Dir)
	}
	fmt.Fprintf(out, "%s Subscription key is valid\n", ui.ok("[OK]"))
	return nil
}
