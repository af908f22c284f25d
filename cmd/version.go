package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/osbuddy/osbuddy/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(_ *cobra.Command, _ []string) error {
	fmt.Printf("OS Buddy %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Model: %s\n", cfg.ModelName)
	fmt.Printf("  Embedder: %s\n", cfg.EmbedderModel)
	fmt.Printf("  Data dir: %s\n", cfg.DataDir)
	fmt.Printf("  Listen addr: %s\n", cfg.Addr)

	// Check API key presence without printing it.
	key := os.Getenv("GEMINI_API_KEY")
	if key != "" {
		fmt.Println("  GEMINI_API_KEY: configured")
	} else {
		fmt.Println("  GEMINI_API_KEY: Not set")
		fmt.Println()
		fmt.Println("Hint: Please set GEMINI_API_KEY environment variable")
		fmt.Println("  export GEMINI_API_KEY=your-api-key")
	}

	if os.Getenv("MONGO_URI") == "" {
		fmt.Println("  MONGO_URI: Not set (sessions persist to local file)")
	} else {
		fmt.Println("  MONGO_URI: configured")
	}

	return nil
}
