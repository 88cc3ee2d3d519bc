/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/infectwatch/apiserver/config"
	"github.com/infectwatch/apiserver/internal/dynamo"
	"github.com/infectwatch/apiserver/internal/logging"
	"github.com/spf13/cobra"
)

// tablesCmd groups the DynamoDB provisioning commands.
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Manage the DynamoDB tables",
}

var tablesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the users and login-sessions tables if they do not exist",
	Long: `Creates the users table and the login-sessions table with its
email index. Tables that already exist are left untouched. Usage:

	infectwatch tables create
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log, os.Stdout)

		client, err := dynamo.NewClient(cmd.Context(), cfg.Dynamo)
		if err != nil {
			return fmt.Errorf("dynamodb client: %w", err)
		}
		if err := dynamo.EnsureTables(cmd.Context(), client, cfg.Dynamo, logger); err != nil {
			return err
		}
		logger.Info("tables ready")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.AddCommand(tablesCreateCmd)
}
