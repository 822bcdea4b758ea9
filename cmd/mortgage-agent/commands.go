package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/rocket-approval/mortgage-agent/internal/agent"
	"github.com/rocket-approval/mortgage-agent/internal/auth"
	"github.com/rocket-approval/mortgage-agent/internal/config"
	"github.com/rocket-approval/mortgage-agent/internal/logger"
	"github.com/rocket-approval/mortgage-agent/internal/models"
	"github.com/rocket-approval/mortgage-agent/internal/tools"
)

func startAgent(ctx context.Context, cfg *config.Config) *agent.Agent {
	a, err := agent.New(ctx, cfg, agent.Options{})
	if err != nil {
		logger.Fatal("Failed to start agent: %v", err)
	}
	return a
}

func newLoginCmd(flags *globalFlags) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google so the account tools can read your profile",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd, flags)
			if !cfg.GoogleEnabled() {
				logger.Fatal("Google OAuth is not configured, set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
			}

			ctx, stop := signalContext()
			defer stop()

			a := startAgent(ctx, cfg)
			defer a.Cleanup()
			if !a.Persistent() {
				logger.Warn("No redis configured, the token will be forgotten when this command exits")
			}

			if err := login(ctx, a.Auth(), cfg, timeout); err != nil {
				logger.Fatal("Login failed: %v", err)
			}
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "", 5*time.Minute, "How long to wait for the browser to come back")
	return cmd
}

func login(ctx context.Context, provider *auth.Provider, cfg *config.Config, timeout time.Duration) error {
	redirect, err := url.Parse(cfg.Google.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect url: %w", err)
	}

	results := make(chan auth.Result, 1)
	mux := http.NewServeMux()
	mux.Handle(redirect.Path, provider.CallbackHandler(results))
	server := &http.Server{Addr: redirect.Host, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL, err := provider.AuthorizationURL(cfg.UserID)
	if err != nil {
		return err
	}
	fmt.Printf("Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)
	logger.Info("Waiting for the OAuth callback on %s", redirect.Host)

	select {
	case res := <-results:
		if res.Err != nil {
			return res.Err
		}
		fmt.Printf("Signed in as %s.\n", res.UserID)
		return nil
	case err := <-serveErr:
		return fmt.Errorf("callback server failed: %w", err)
	case <-time.After(timeout):
		return fmt.Errorf("no callback after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newToolsCmd(flags *globalFlags) *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and call the assistant's tools directly",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the registered tools",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd, flags)
			ctx, stop := signalContext()
			defer stop()

			a := startAgent(ctx, cfg)
			defer a.Cleanup()

			fmt.Println(toolTable(a.Registry().List()))
		},
	}

	var (
		input        string
		loanID       string
		sessionToken string
	)
	runCmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Call a tool with a JSON input",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd, flags)
			ctx, stop := signalContext()
			defer stop()

			a := startAgent(ctx, cfg)
			defer a.Cleanup()

			tc := &tools.Context{
				UserID:  cfg.UserID,
				Session: models.Session{RmLoanID: loanID, SessionToken: sessionToken},
			}
			resp := a.Registry().Execute(ctx, args[0], tc, json.RawMessage(input))

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				logger.Fatal("Failed to encode response: %v", err)
			}
			fmt.Println(string(out))
			if tc.Session.SessionToken != "" && tc.Session.SessionToken != sessionToken {
				fmt.Printf("\nSession: --loan-id %s --session-token %s\n", tc.Session.RmLoanID, tc.Session.SessionToken)
			}
			if !resp.Success {
				os.Exit(1)
			}
		},
	}
	runCmd.Flags().StringVarP(&input, "input", "i", "{}", "Tool input as a JSON object")
	runCmd.Flags().StringVarP(&loanID, "loan-id", "", "", "rmLoanId of the application")
	runCmd.Flags().StringVarP(&sessionToken, "session-token", "", "", "Session token of the application")

	toolsCmd.AddCommand(listCmd)
	toolsCmd.AddCommand(runCmd)
	return toolsCmd
}

func toolTable(list []tools.Tool) string {
	rows := make([][]string, 0, len(list))
	for _, tool := range list {
		var params []string
		for _, p := range tool.Params {
			if !p.Inferrable {
				continue
			}
			name := p.Name
			if p.Required {
				name += "*"
			}
			params = append(params, name)
		}

		flags := ""
		if tool.Sensitive {
			flags = "sensitive"
		}
		if tool.Auth != nil {
			flags = strings.TrimSpace(flags + " " + tool.Auth.Provider)
		}
		rows = append(rows, []string{tool.Name, flags, strings.Join(params, ", ")})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers("TOOL", "NOTES", "INPUT (* required)").
		Rows(rows...).
		String()
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	var (
		watch        bool
		sessionToken string
	)

	cmd := &cobra.Command{
		Use:   "status <rmLoanId>",
		Short: "Show where an application stands",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd, flags)
			ctx, stop := signalContext()
			defer stop()

			a := startAgent(ctx, cfg)
			defer a.Cleanup()

			sess := models.Session{RmLoanID: args[0], SessionToken: sessionToken}
			if !watch {
				status, err := a.Application().GetApplicationStatus(ctx, sess)
				if err != nil {
					logger.Fatal("Failed to get application status: %v", err)
				}
				printStatus(status)
				return
			}

			for status := range a.Watcher().Watch(ctx, sess) {
				printStatus(status)
			}
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling until the application is complete")
	cmd.Flags().StringVarP(&sessionToken, "session-token", "", "", "Session token of the application")
	return cmd
}

func printStatus(status models.ApplicationStatus) {
	line := fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), status.RmLoanID, status.Status)
	if status.CreditStatus != "" {
		line += fmt.Sprintf(" (credit: %s)", status.CreditStatus)
	}
	if status.AccountID != "" {
		line += fmt.Sprintf(" (account: %s)", status.AccountID)
	}
	fmt.Println(line)
}

func newDoctorCmd(flags *globalFlags) *cobra.Command {
	var attempts int

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and API reachability",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd, flags)
			ctx, stop := signalContext()
			defer stop()

			a := startAgent(ctx, cfg)
			defer a.Cleanup()

			checkpoints := "memory (not persistent)"
			if a.Persistent() {
				checkpoints = "redis at " + cfg.RedisAddr
			}
			google := "not configured"
			if cfg.GoogleEnabled() {
				google = "configured, redirect " + cfg.Google.RedirectURL
			}

			fmt.Printf("API:         %s\n", cfg.BaseURL)
			fmt.Printf("Checkpoints: %s\n", checkpoints)
			fmt.Printf("Google:      %s\n", google)
			fmt.Printf("User:        %s\n", cfg.UserID)
			fmt.Printf("Data dir:    %s\n", cfg.DataDir)
			fmt.Printf("Tools:       %d registered\n", len(a.Registry().List()))

			if !a.WaitForAPIReady(ctx, attempts) {
				logger.Fatal("Application API at %s is not reachable", cfg.BaseURL)
			}
			fmt.Println("Application API is reachable.")
		},
	}
	cmd.Flags().IntVarP(&attempts, "attempts", "a", 3, "Maximum attempts to check API readiness")
	return cmd
}
