package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/finledger/internal/infrastructure/logger"
	"github.com/iho/finledger/internal/infrastructure/postgres"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "finledger-cli",
		Short: "FinLedger CLI tool",
		Long:  `A command line interface for operating the FinLedger service.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the FinLedger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(trialBalanceCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(balanceSheetCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	var (
		databaseURL    string
		migrationsPath string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}

	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	cmd.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "Path to migration files")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postgres.RunMigrations(databaseURL, migrationsPath, logger.New(logger.Config{Level: "info", Format: "console"}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postgres.RunMigrationsDown(databaseURL, migrationsPath, logger.New(logger.Config{Level: "info", Format: "console"}))
		},
	})

	return cmd
}

func trialBalanceCmd() *cobra.Command {
	var currency string

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Fetch the trial balance report",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/reports/trial-balance"
			if currency != "" {
				path += "?currency=" + currency
			}
			return fetchJSON(http.MethodGet, path)
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "", "Restrict the report to one currency")

	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute balances from journal entries and report discrepancies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchJSON(http.MethodPost, "/api/v1/reports/reconcile")
		},
	}
}

func balanceSheetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance-sheet",
		Short: "Fetch the balance sheet report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchJSON(http.MethodGet, "/api/v1/reports/balance-sheet")
		},
	}
}

func fetchJSON(method, path string) error {
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequest(method, baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	printJSON(result)
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("failed to render output: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
