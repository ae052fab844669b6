package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/andywolf/ci-buglist/internal/config"
	"github.com/andywolf/ci-buglist/internal/launchpad"
	"github.com/andywolf/ci-buglist/internal/report"
	"github.com/andywolf/ci-buglist/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ci-buglist <milestone>",
	Short: "List fixed bugs for an openstack-ci milestone",
	Long: `ci-buglist lists all bugs marked 'Fix Released' on a Launchpad milestone.

The openstack-ci project files bugs differently from the other OpenStack
projects: the milestone names the major release (folsom, grizzly, ...) and
the series is always 'trunk'.

Each bug is printed as "<bug-id> <assignee> <date>", where the date is when
the fix was committed, else released, else when the task was closed, else
when it was created. Unassigned bugs print "<unknown>".

Example:
  ci-buglist grizzly`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

// ExecuteContext runs the root command; cancelling ctx aborts in-flight
// tracker requests.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version.Info()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .ci-buglist.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	flags := rootCmd.Flags()
	flags.String("project", config.DefaultProject, "Launchpad project to report on")
	flags.String("series", config.DefaultSeries, "series holding the milestones")
	flags.String("status", config.DefaultStatus, "bug task status to list")
	flags.String("service-root", config.DefaultServiceRoot, "Launchpad instance (production, staging, qastaging, dogfood) or API URL")
	flags.String("credentials-file", "", "launchpadlib credentials file (default ~/.launchpadlib/ci-buglist-credentials)")

	_ = viper.BindPFlag("report.project", flags.Lookup("project"))
	_ = viper.BindPFlag("report.series", flags.Lookup("series"))
	_ = viper.BindPFlag("report.status", flags.Lookup("status"))
	_ = viper.BindPFlag("launchpad.service_root", flags.Lookup("service-root"))
	_ = viper.BindPFlag("credentials.file", flags.Lookup("credentials-file"))
}

func initConfig() {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error getting working directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ci-buglist")
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("CI_BUGLIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		os.Exit(1)
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	// Arguments are valid from here on; further errors are not usage errors.
	cmd.SilenceUsage = true

	ctx := cmd.Context()
	milestone := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(viper.GetBool("verbose"), cmd.ErrOrStderr())
	defer func() { _ = logger.Sync() }()

	serviceRoot, err := cfg.ServiceRootURL()
	if err != nil {
		return err
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return err
	}

	client := launchpad.NewClient(
		launchpad.WithHTTPClient(&http.Client{Timeout: timeout}),
		launchpad.WithServiceRoot(serviceRoot),
		launchpad.WithAPIVersion(cfg.Launchpad.APIVersion),
		launchpad.WithConsumer(cfg.Launchpad.Consumer),
		launchpad.WithLogger(logger),
	)

	creds, err := resolveCredentials(ctx, cfg, newSecretFetcher, logger)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	var session *launchpad.Session
	if creds != nil {
		session, err = client.Login(ctx, creds)
	} else {
		session, err = client.LoginAnonymously(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to log in to launchpad: %w", err)
	}
	defer session.Close()

	logger.Debug("generating report",
		zap.String("milestone", milestone),
		zap.String("project", cfg.Report.Project),
		zap.String("series", cfg.Report.Series),
	)

	gen := report.NewGenerator(session, report.Options{
		Project: cfg.Report.Project,
		Series:  cfg.Report.Series,
		Status:  cfg.Report.Status,
		Logger:  logger,
	})

	if _, err := gen.Run(ctx, milestone, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to list bugs for milestone %s: %w", milestone, err)
	}

	return nil
}
