// signupctl walks through the registration wizard from a terminal. The session cookie
// is kept in a file so a registration can be resumed by later invocations; every
// command first reconciles with the server.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/client/flow"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/service"
)

var (
	apiURL      string
	sessionPath string

	formFirstName string
	formLastName  string
	formEmail     string
	formPhone     string
	formConsent   bool

	accountName string
	accountSlug string
	otpMethod   string
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "signupctl",
		Short:         "Register a new workspace step by step",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	home, _ := os.UserHomeDir()
	root.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8080", "registration API base URL")
	root.PersistentFlags().StringVar(&sessionPath, "session", filepath.Join(home, ".signupctl", "session.json"), "file holding the session cookie")

	register := &cobra.Command{
		Use:   "register",
		Short: "Submit (or edit) the FORM step; prompts for the password",
		RunE: withController(func(ctx context.Context, c *flow.Controller, cmd *cobra.Command, _ []string) (any, error) {
			in := service.FormInput{
				FirstName:    formFirstName,
				LastName:     formLastName,
				Email:        formEmail,
				PhoneNumber:  formPhone,
				ConsentGiven: formConsent,
			}
			if !c.Started() || cmd.Flags().Changed("password") {
				pw, err := promptPassword(cmd.ErrOrStderr())
				if err != nil {
					return nil, err
				}
				in.Password = pw
			}
			return c.SubmitForm(ctx, in)
		}),
	}
	register.Flags().StringVar(&formFirstName, "first-name", "", "first name")
	register.Flags().StringVar(&formLastName, "last-name", "", "last name")
	register.Flags().StringVar(&formEmail, "email", "", "email address")
	register.Flags().StringVar(&formPhone, "phone", "", "phone number in E.164 form")
	register.Flags().BoolVar(&formConsent, "consent", false, "accept the terms")
	register.Flags().Bool("password", false, "prompt for a new password when editing")

	otpCmd := &cobra.Command{Use: "otp", Short: "Verify the email address or phone number"}
	send := &cobra.Command{
		Use:   "send",
		Short: "Send a verification code",
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, _ []string) (any, error) {
			return c.SendOTP(ctx, domain.OTPMethod(strings.ToUpper(otpMethod)))
		}),
	}
	send.Flags().StringVar(&otpMethod, "method", "EMAIL", "delivery method: EMAIL or SMS")
	verify := &cobra.Command{
		Use:   "verify CODE",
		Short: "Submit the code",
		Args:  cobra.ExactArgs(1),
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, args []string) (any, error) {
			return c.VerifyOTP(ctx, args[0])
		}),
	}
	otpCmd.AddCommand(send, verify)

	accountCmd := &cobra.Command{Use: "account", Short: "Choose the workspace name and address"}
	check := &cobra.Command{
		Use:   "check SLUG",
		Short: "Check whether an address is free",
		Args:  cobra.ExactArgs(1),
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, args []string) (any, error) {
			free, err := c.CheckSlug(ctx, args[0])
			return map[string]any{"slug": args[0], "available": free}, err
		}),
	}
	create := &cobra.Command{
		Use:   "create",
		Short: "Submit the ACCOUNT_SETUP step",
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, _ []string) (any, error) {
			return c.CreateAccount(ctx, service.AccountInput{Name: accountName, Slug: accountSlug})
		}),
	}
	create.Flags().StringVar(&accountName, "name", "", "workspace name")
	create.Flags().StringVar(&accountSlug, "slug", "", "workspace address")
	accountCmd.AddCommand(check, create)

	interviewCmd := &cobra.Command{Use: "interview", Short: "Answer the onboarding questions"}
	answer := &cobra.Command{
		Use:   "answer FIELD VALUE",
		Short: "Save one answer",
		Args:  cobra.ExactArgs(2),
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, args []string) (any, error) {
			return c.SaveAnswer(ctx, args[0], args[1])
		}),
	}
	complete := &cobra.Command{
		Use:   "complete [FIELD=VALUE...]",
		Short: "Save any remaining answers and complete the step",
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, args []string) (any, error) {
			answers, err := parseAnswers(args)
			if err != nil {
				return nil, err
			}
			return c.CompleteInterview(ctx, answers)
		}),
	}
	interviewCmd.AddCommand(answer, complete)

	plans := &cobra.Command{
		Use:   "plans",
		Short: "List the available plans",
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, _ []string) (any, error) {
			return c.Plans(ctx)
		}),
	}
	plan := &cobra.Command{
		Use:   "plan PLAN_ID",
		Short: "Submit the PLAN step",
		Args:  cobra.ExactArgs(1),
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, args []string) (any, error) {
			return c.SelectPlan(ctx, args[0])
		}),
	}
	pay := &cobra.Command{
		Use:   "pay TOKEN",
		Short: "Submit the PAYMENT step with a card token",
		Args:  cobra.ExactArgs(1),
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, args []string) (any, error) {
			return c.Pay(ctx, args[0])
		}),
	}
	finalize := &cobra.Command{
		Use:   "finalize",
		Short: "Create the workspace",
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, _ []string) (any, error) {
			return c.Finalize(ctx)
		}),
	}
	show := &cobra.Command{
		Use:   "show STEP",
		Short: "Show the stored values of a reached step",
		Args:  cobra.ExactArgs(1),
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, args []string) (any, error) {
			step, err := domain.ParseStep(args[0])
			if err != nil {
				return nil, err
			}
			return c.GoTo(ctx, step)
		}),
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current step",
		RunE: withController(func(_ context.Context, c *flow.Controller, _ *cobra.Command, _ []string) (any, error) {
			return map[string]any{"started": c.Started(), "current_step": c.Confirmed(), "view": c.View()}, nil
		}),
	}
	abandon := &cobra.Command{
		Use:   "abandon",
		Short: "Discard the registration",
		RunE: withController(func(ctx context.Context, c *flow.Controller, _ *cobra.Command, _ []string) (any, error) {
			return map[string]bool{"abandoned": true}, c.Abandon(ctx)
		}),
	}

	root.AddCommand(register, otpCmd, accountCmd, interviewCmd, plans, plan, pay, finalize, show, status, abandon)
	return root
}

type action func(ctx context.Context, c *flow.Controller, cmd *cobra.Command, args []string) (any, error)

// withController loads the saved session, reconciles with the server, runs fn, saves
// the session again and prints the result as JSON.
func withController(fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		jar, err := cookiejar.New(nil)
		if err != nil {
			return err
		}
		if err := flow.LoadSession(jar, apiURL, sessionPath); err != nil {
			return err
		}
		c, err := flow.New(apiURL, &http.Client{Jar: jar, Timeout: 30 * time.Second})
		if err != nil {
			return err
		}
		defer func() {
			if err := flow.SaveSession(jar, apiURL, sessionPath); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: saving session:", err)
			}
		}()

		if _, err := c.Sync(ctx); err != nil && !flow.IsCode(err, "REGISTRATION_EXPIRED") {
			return err
		} else if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "registration expired; starting over at FORM")
		}
		out, err := fn(ctx, c, cmd, args)
		if err != nil {
			return explain(err)
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
}

func explain(err error) error {
	var apiErr *flow.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case len(apiErr.Fields) > 0:
		parts := make([]string, 0, len(apiErr.Fields))
		for f, msg := range apiErr.Fields {
			parts = append(parts, f+" "+msg)
		}
		return fmt.Errorf("%s: %s", apiErr.Message, strings.Join(parts, "; "))
	case apiErr.AttemptsRemaining != nil:
		return fmt.Errorf("%s (%d attempts left)", apiErr.Message, *apiErr.AttemptsRemaining)
	case apiErr.RetryAfterSeconds > 0:
		return fmt.Errorf("%s (retry in %s)", apiErr.Message, apiErr.RetryAfter())
	case apiErr.CurrentStep != nil:
		return fmt.Errorf("%s (current step %s)", apiErr.Message, *apiErr.CurrentStep)
	}
	return apiErr
}

func parseAnswers(args []string) ([]service.AnswerInput, error) {
	out := make([]service.AnswerInput, 0, len(args))
	for _, a := range args {
		field, value, ok := strings.Cut(a, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("answer %q must look like FIELD=VALUE", a)
		}
		out = append(out, service.AnswerInput{Field: field, Value: value})
	}
	return out, nil
}

func promptPassword(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	fmt.Fprint(w, "Password: ")
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
