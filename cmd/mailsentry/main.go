package main

import (
	"os"

	"github.com/pterm/pterm"

	"github.com/mailsentry/mailsentry/internal/auth"
	"github.com/mailsentry/mailsentry/internal/bot"
	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/gmail"
	"github.com/mailsentry/mailsentry/internal/logger"
	"github.com/mailsentry/mailsentry/internal/notify"
	"github.com/mailsentry/mailsentry/internal/poller"
	"github.com/mailsentry/mailsentry/internal/server"
	"github.com/mailsentry/mailsentry/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mailsentry",
	Short: "Near-real-time OTP relay from Gmail to Telegram",
	Long: `MailSentry polls the Gmail mailboxes of linked accounts, extracts
one-time passcodes from new mail, and pushes them to each user's Telegram
dashboard within seconds of arrival.`,
	Run: runService,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags()
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
}

// runService loads configuration and runs the fx application until a
// shutdown signal arrives.
func runService(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		pterm.Error.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app := fx.New(
		fx.Supply(cfg),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.GetLogger().WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		store.Module,
		gmail.Module,
		notify.Module,
		poller.Module,
		auth.Module,
		bot.Module,
		server.Module,
	)

	app.Run()
}
