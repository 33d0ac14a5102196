package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-analytics-client/apimodel"
	"github.com/jrsteele09/go-analytics-client/credentials"
	"github.com/jrsteele09/go-analytics-client/dispatch"
	"github.com/jrsteele09/go-analytics-client/internal/utils"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in")

func (a *app) readPassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(a.errOut, "Password: ")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid dataset id %q", s)
	}
	return id, nil
}

func (a *app) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Sign in and store the session",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		pw, err := a.readPassword(password)
		if err != nil {
			return err
		}
		if _, err := a.client.Login(ctx, args[0], pw); err != nil {
			return err
		}
		a.println("Logged in as %s", args[0])
		return nil
	})
	return cmd
}

func (a *app) signupCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "signup USERNAME EMAIL",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		pw, err := a.readPassword(password)
		if err != nil {
			return err
		}
		if _, err := a.client.Signup(ctx, args[0], args[1], pw); err != nil {
			return err
		}
		a.println("Account %s created", args[0])
		return nil
	})
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		if err := a.client.Logout(ctx); err != nil {
			return err
		}
		a.println("Logged out")
		return nil
	})
	return cmd
}

type whoami struct {
	*credentials.Identity
	AccessExpiresAt *time.Time `json:"access_expires_at,omitempty"`
}

func (a *app) whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		if !a.client.IsAuthenticated(ctx) {
			return errNotLoggedIn
		}
		user := a.client.CurrentUser(ctx)
		if user == nil {
			return errNotLoggedIn
		}
		out := whoami{Identity: user}
		if claims, err := credentials.ParseAccessClaims(a.client.Store().Access(ctx)); err == nil {
			if exp := claims.Expiry(); !exp.IsZero() {
				out.AccessExpiresAt = &exp
			}
		}
		return a.printJSON(out)
	})
	return cmd
}

func (a *app) profileCmd() *cobra.Command {
	var set []string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the profile",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "field=value to update (email, first_name, last_name, bio, company, phone)")
	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		if len(set) == 0 {
			p, err := a.client.Profile(ctx)
			if err != nil {
				return err
			}
			return a.printJSON(p)
		}

		update, err := parseProfileUpdate(set)
		if err != nil {
			return err
		}
		p, err := a.client.UpdateProfile(ctx, update)
		if err != nil {
			return err
		}
		return a.printJSON(p)
	})
	return cmd
}

func parseProfileUpdate(pairs []string) (apimodel.ProfileUpdate, error) {
	var u apimodel.ProfileUpdate
	details := &apimodel.ProfileDetails{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return u, fmt.Errorf("expected field=value, got %q", pair)
		}
		switch strings.TrimSpace(key) {
		case "email":
			u.Email = utils.PtrIfSet(value)
		case "first_name":
			u.FirstName = utils.Ptr(value)
		case "last_name":
			u.LastName = utils.Ptr(value)
		case "bio":
			details.Bio = utils.Ptr(value)
		case "company":
			details.Company = utils.Ptr(value)
		case "phone":
			details.Phone = utils.Ptr(value)
		default:
			return u, fmt.Errorf("unknown profile field %q", key)
		}
	}
	if *details != (apimodel.ProfileDetails{}) {
		u.Profile = details
	}
	return u, nil
}

func (a *app) passwordCmd() *cobra.Command {
	var oldPassword, newPassword string
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&oldPassword, "old", "", "current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		if err := a.client.ChangePassword(ctx, oldPassword, newPassword); err != nil {
			return err
		}
		a.println("Password changed")
		return nil
	})
	return cmd
}

func (a *app) uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a CSV dataset",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		out, err := a.client.UploadFile(ctx, args[0])
		if err != nil {
			return err
		}
		return a.printJSON(out)
	})
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent uploads",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		datasets, err := a.client.History(ctx)
		if err != nil {
			return err
		}
		return a.printJSON(datasets)
	})
	return cmd
}

func (a *app) analysisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analysis ID",
		Short: "Show the analysis of a dataset",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		body, err := a.client.Analysis(ctx, id)
		if err != nil {
			return err
		}
		return a.printJSON(body)
	})
	return cmd
}

func (a *app) compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare ID1 ID2",
		Short: "Compare two datasets",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		first, err := parseID(args[0])
		if err != nil {
			return err
		}
		second, err := parseID(args[1])
		if err != nil {
			return err
		}
		body, err := a.client.Compare(ctx, first, second)
		if err != nil {
			return err
		}
		return a.printJSON(body)
	})
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a dataset",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := a.client.DeleteDataset(ctx, id); err != nil {
			return err
		}
		a.println("Dataset %d deleted", id)
		return nil
	})
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var password, outPath string
	cmd := &cobra.Command{
		Use:       "export pdf|excel ID",
		Short:     "Download a password-protected report",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(apimodel.ExportPDF), string(apimodel.ExportExcel)},
	}
	cmd.Flags().StringVar(&password, "password", "", "password protecting the report")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default report_ID.pdf or .xlsx)")
	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		format := apimodel.ExportFormat(args[0])
		if format != apimodel.ExportPDF && format != apimodel.ExportExcel {
			return fmt.Errorf("unknown export format %q", args[0])
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		data, err := a.client.Export(ctx, format, id, password)
		if err != nil {
			return err
		}

		path := outPath
		if path == "" {
			path = fmt.Sprintf("report_%d%s", id, format.Extension())
		}
		if err := writeFile(path, data); err != nil {
			return err
		}
		a.println("Wrote %s (%d bytes)", path, len(data))
		return nil
	})
	return cmd
}

func (a *app) callCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call METHOD ENDPOINT [JSON]",
		Short: "Send an arbitrary request through the authenticated pipeline",
		Args:  cobra.RangeArgs(2, 3),
	}
	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		var payload any
		if len(args) == 3 {
			if !json.Valid([]byte(args[2])) {
				return fmt.Errorf("body is not valid JSON")
			}
			payload = json.RawMessage(args[2])
		}

		resp, err := a.client.Call(ctx, strings.ToUpper(args[0]), args[1], payload)
		if err != nil {
			var statusErr *dispatch.StatusError
			if errors.As(err, &statusErr) && json.Valid(statusErr.Body) {
				_ = a.printJSON(statusErr.Body)
			}
			return err
		}
		if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
			a.println("%d", resp.StatusCode)
			return nil
		}
		if !json.Valid(resp.Body) {
			_, err := a.out.Write(resp.Body)
			return err
		}
		return a.printJSON(resp.Body)
	})
	return cmd
}
