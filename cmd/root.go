package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"syncworker/internal/app"
	"syncworker/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "syncworker",
	Short: "Background data sync worker",
	Long: `syncworker submits data synchronization jobs to a Redis-backed queue and
runs them in separate worker processes, retrying failed attempts with
exponential backoff and reporting progress back to the submitter.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is given, print help.
		cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		if err := bindFlags(cmd.Flags()); err != nil {
			return err
		}
		cfg, err := config.Load(viper.GetViper(), configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appInstance, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a, err := GetAppFromContext(cmd.Context()); err == nil {
			a.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Define a custom type for the context key to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// GetAppFromContext retrieves the app instance stored by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

// configKeys maps flags to the config keys they override.
var configKeys = map[string]string{
	"redis":     "redis.address",
	"log-level": "log.level",
}

// bindFlags lets explicitly set flags override config file and env values.
func bindFlags(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := configKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = viper.BindPFlag(key, f)
	})
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("redis", "", "Redis address (overrides redis.address)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides log.level)")

	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check Redis and record store connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}

		fmt.Println("Checking Redis connectivity...")
		if err := appInstance.Ping(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		fmt.Println("Redis connection successful.")

		fmt.Println("Checking record store...")
		rs, err := app.OpenRecordStore(ctx, appInstance.Config.Database.DSN)
		if err != nil {
			return fmt.Errorf("record store: %w", err)
		}
		defer rs.Close()
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("record store ping failed: %w", err)
		}
		fmt.Println("Record store connection successful.")
		return nil
	},
}
