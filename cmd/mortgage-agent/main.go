package main

import (
	"context"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rocket-approval/mortgage-agent/internal/config"
	"github.com/rocket-approval/mortgage-agent/internal/logger"
	"github.com/rocket-approval/mortgage-agent/internal/utils"
)

type globalFlags struct {
	configPath string
	baseURL    string
	redisAddr  string
	dataDir    string
	userID     string
	logLevel   string
}

func loadConfig(cmd *cobra.Command, flags *globalFlags) *config.Config {
	loader := config.NewLoader()
	if flags.configPath != "" {
		loader.SetConfigFile(flags.configPath)
	}

	overrides := map[string]string{
		"base-url":   "base_url",
		"redis-addr": "redis_addr",
		"data-dir":   "data_dir",
		"user-id":    "user_id",
		"log-level":  "log_level",
	}
	for flag, key := range overrides {
		if cmd.Flags().Changed(flag) {
			value, _ := cmd.Flags().GetString(flag)
			loader.Set(key, value)
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	if cfg.UserID == "" {
		cfg.UserID = "local"
		if current, err := user.Current(); err == nil && current.Username != "" {
			cfg.UserID = current.Username
		}
	}

	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	utils.LoadEnvironment()
	logger.Init()

	flags := &globalFlags{}

	var plain bool
	rootCmd := &cobra.Command{
		Use:   "mortgage-agent",
		Short: "A conversational assistant for mortgage pre-approval",
		Long: `mortgage-agent walks a borrower through a Rocket Mortgage purchase pre-approval
one question at a time, calling the application API as each step is answered.`,
		Run: func(cmd *cobra.Command, args []string) {
			runChat(loadConfig(cmd, flags), "", plain)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a mortgage-agent.yaml config file")
	rootCmd.PersistentFlags().StringVarP(&flags.baseURL, "base-url", "", "", "Application API base URL")
	rootCmd.PersistentFlags().StringVarP(&flags.redisAddr, "redis-addr", "", "", "Redis address for conversation checkpoints")
	rootCmd.PersistentFlags().StringVarP(&flags.dataDir, "data-dir", "", "", "Directory for local state (default: ~/.mortgage-agent)")
	rootCmd.PersistentFlags().StringVarP(&flags.userID, "user-id", "u", "", "User the conversation and tokens belong to")
	rootCmd.PersistentFlags().StringVarP(&flags.logLevel, "log-level", "", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&plain, "plain", "", false, "Use a line-mode prompt instead of the full screen chat")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a new conversation",
		Run: func(cmd *cobra.Command, args []string) {
			runChat(loadConfig(cmd, flags), "", plain)
		},
	}
	chatCmd.Flags().BoolVarP(&plain, "plain", "", false, "Use a line-mode prompt instead of the full screen chat")

	resumeCmd := &cobra.Command{
		Use:   "resume [thread-id]",
		Short: "Continue a saved conversation (defaults to the last one)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd, flags)
			threadID := ""
			if len(args) == 1 {
				threadID = args[0]
			}
			runResume(cfg, threadID, plain)
		},
	}
	resumeCmd.Flags().BoolVarP(&plain, "plain", "", false, "Use a line-mode prompt instead of the full screen chat")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(newLoginCmd(flags))
	rootCmd.AddCommand(newToolsCmd(flags))
	rootCmd.AddCommand(newStatusCmd(flags))
	rootCmd.AddCommand(newDoctorCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
}
