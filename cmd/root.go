// Package cmd implements the osbuddy command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "osbuddy",
	Short: "OS Buddy - an Operating Systems tutoring backend",
	Long: `OS Buddy serves a conversational Operating Systems tutor over HTTP.

It answers questions grounded in an indexed course corpus when one is
available, keeps per-session conversation history, and politely refuses
questions outside Operating Systems, Computer Science, and Coding.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
