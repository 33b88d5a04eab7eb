package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/glefebvre/reelvault/internal/client"
	"github.com/glefebvre/reelvault/internal/config"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/retry"
	"github.com/glefebvre/reelvault/internal/rewrite"
	"github.com/spf13/cobra"
)

var rewriteURLsCmd = &cobra.Command{
	Use:   "rewrite-urls",
	Short: "Find and replace a URL fragment across every availability option",
	Long: `Rewrite availability URLs through the REST API of a running server.

The command will:
- Page through the whole catalog and list the availability options of each title
- Replace the first occurrence of --search in the part of each URL before '?'
- Keep the query string exactly as it was
- Retry updates rejected with 429 using exponential backoff
- Report how many updates succeeded and failed

Send SIGUSR1 to pause or resume the run; SIGINT cancels it and keeps the updates
already applied. Use --dry-run to preview the rewrites without updating anything.`,
	Example: `  reelvault rewrite-urls --search https://t.me/OldBot --replace https://t.me/NewBot --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		replace, _ := cmd.Flags().GetString("replace")
		apiURL, _ := cmd.Flags().GetString("api-url")
		token, _ := cmd.Flags().GetString("token")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")
		verbose, _ := cmd.Flags().GetBool("verbose")

		cfg := config.Get()
		log := logger.AppLogger()

		if apiURL == "" {
			apiURL = cfg.Rewrite.APIURL
		}
		if token == "" {
			token = os.Getenv("REELVAULT_TOKEN")
		}
		if email == "" {
			email = cfg.Auth.AdminEmail
		}
		if password == "" {
			password = cfg.Auth.AdminPassword
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		api := client.New(client.Config{BaseURL: apiURL, Token: token})
		if token == "" {
			if password == "" {
				return fmt.Errorf("provide --token, REELVAULT_TOKEN or admin credentials")
			}
			if _, err := api.Login(ctx, email, password); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
		}

		opts := rewrite.Options{
			Search:      search,
			Replace:     replace,
			PageSize:    cfg.Rewrite.PageSize,
			Concurrency: cfg.Rewrite.Concurrency,
			DryRun:      dryRun,
			Retry: retry.Config{
				MaxAttempts:       cfg.Rewrite.MaxAttempts,
				InitialBackoff:    cfg.Rewrite.BaseDelay,
				MaxBackoff:        cfg.Rewrite.MaxDelay,
				BackoffMultiplier: 2,
			},
		}
		if verbose {
			opts.OnProgress = func(p rewrite.Progress) {
				fmt.Fprintf(os.Stderr, "[%d/%d] %s availability %d: %s\n",
					p.Done, p.Total, p.Item.ContentTitle, p.Item.AvailabilityID, p.Item.Outcome)
			}
		}

		rw, err := rewrite.New(api, opts, log)
		if err != nil {
			return err
		}

		stopPause := watchPauseSignal(ctx, rw, log)
		defer stopPause()

		report, err := rw.Run(ctx)
		if report != nil {
			if printErr := printReport(report, asJSON); printErr != nil {
				return printErr
			}
		}
		if err != nil {
			return err
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d updates failed", report.Failed, report.Matched)
		}
		if report.State == rewrite.Cancelled {
			return context.Canceled
		}
		return nil
	},
}

func printReport(report *rewrite.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Println(report.Summary())
	for _, item := range report.Items {
		switch item.Outcome {
		case rewrite.OutcomePlanned:
			fmt.Printf("  %s -> %s\n", item.OldURL, item.NewURL)
		case rewrite.OutcomeFailed:
			fmt.Printf("  FAILED %s (content %d, availability %d): %s\n", item.OldURL, item.ContentID, item.AvailabilityID, item.Error)
		}
	}
	return nil
}

func init() {
	rewriteURLsCmd.Flags().String("search", "", "URL fragment to find (required)")
	rewriteURLsCmd.Flags().String("replace", "", "replacement for the fragment (required)")
	rewriteURLsCmd.Flags().String("api-url", "", "base URL of the API (defaults to rewrite.api_url)")
	rewriteURLsCmd.Flags().String("token", "", "admin bearer token (or REELVAULT_TOKEN)")
	rewriteURLsCmd.Flags().String("email", "", "admin email used to log in when no token is given")
	rewriteURLsCmd.Flags().String("password", "", "admin password used to log in when no token is given")
	rewriteURLsCmd.Flags().Bool("dry-run", false, "list the planned rewrites without applying them")
	rewriteURLsCmd.Flags().Bool("json", false, "print the report as JSON")
	rewriteURLsCmd.Flags().BoolP("verbose", "v", false, "print one line per handled item")
	_ = rewriteURLsCmd.MarkFlagRequired("search")
	_ = rewriteURLsCmd.MarkFlagRequired("replace")

	rootCmd.AddCommand(rewriteURLsCmd)
}
