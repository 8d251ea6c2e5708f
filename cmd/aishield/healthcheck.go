package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var healthCheckURL string

var healthCheckCmd = &cobra.Command{
	Use:   "health-check",
	Short: "Check a running server and exit non-zero when it is unhealthy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkHealth(cmd, healthCheckURL)
	},
}

func init() {
	rootCmd.AddCommand(healthCheckCmd)

	healthCheckCmd.Flags().StringVar(&healthCheckURL, "url", "http://localhost:8080/health", "health endpoint")
}

func checkHealth(cmd *cobra.Command, url string) error {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: HTTP %d", resp.StatusCode)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Health check passed")
	return nil
}
