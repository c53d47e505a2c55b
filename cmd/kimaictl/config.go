package main

import (
	"fmt"
	"strings"

	"alteran/kimai-agent/internal/secrets"

	"github.com/spf13/cobra"
)

var (
	configURL   string
	configToken string
	configTest  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage server credentials",
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the server URL and API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configURL == "" && configToken == "" {
			return fmt.Errorf("nothing to set: pass --url and/or --token")
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		// Remember prior values so a failed connection test can restore them
		oldURL, hadURL, _ := e.secrets.BaseURL()
		oldToken, hadToken, _ := e.secrets.APIToken()

		if configURL != "" {
			normalized := secrets.NormalizeBaseURL(configURL)
			if err := e.secrets.Set(secrets.KeyBaseURL, normalized); err != nil {
				return err
			}
			fmt.Println("Server URL:", normalized)
		}
		if configToken != "" {
			if err := e.secrets.Set(secrets.KeyAPIToken, strings.TrimSpace(configToken)); err != nil {
				return err
			}
			fmt.Println("API token saved")
		}

		if !configTest {
			return nil
		}

		if err := e.service.TestConnection(); err != nil {
			restore := func(name, value string, had bool) {
				if had {
					_ = e.secrets.Set(name, value)
				} else {
					_ = e.secrets.Delete(name)
				}
			}
			restore(secrets.KeyBaseURL, oldURL, hadURL)
			restore(secrets.KeyAPIToken, oldToken, hadToken)
			return fmt.Errorf("connection test failed, previous credentials kept: %w", err)
		}
		fmt.Println("Connection OK")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the configured server",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		url, hasURL, err := e.secrets.BaseURL()
		if err != nil {
			return err
		}
		_, hasToken, err := e.secrets.APIToken()
		if err != nil {
			return err
		}

		if hasURL {
			fmt.Println("Server URL:", url)
		} else {
			fmt.Println("Server URL: (not set)")
		}
		if hasToken {
			fmt.Println("API token:  (set)")
		} else {
			fmt.Println("API token:  (not set)")
		}
		return nil
	},
}

var configClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.secrets.Delete(secrets.KeyBaseURL); err != nil {
			return err
		}
		if err := e.secrets.Delete(secrets.KeyAPIToken); err != nil {
			return err
		}
		fmt.Println("Credentials removed")
		return nil
	},
}

func init() {
	configSetCmd.Flags().StringVar(&configURL, "url", "", "Kimai server URL")
	configSetCmd.Flags().StringVar(&configToken, "token", "", "API token")
	configSetCmd.Flags().BoolVar(&configTest, "test", false, "Verify credentials; keep previous ones on failure")

	configCmd.AddCommand(configSetCmd, configShowCmd, configClearCmd)
}
