package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kanriapp/kanri/internal/backend"
	"github.com/kanriapp/kanri/internal/models"
	"github.com/kanriapp/kanri/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui     *output.UI
	client *backend.Client

	verbose bool
)

// Set from main via Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "kanri",
	Short: "Kanban board client for a hosted project-management backend",
	Long: `kanri is a terminal client for a hosted kanban backend.
It manages projects and issues, and shows a four-column board
(todo / in progress / in review / done) you can move issues across.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/kanri/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(ui.Out, "kanri %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KANRI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	defaultDir, _ := configDirFunc()

	viper.SetDefault("backend.url", "http://localhost:8765")
	viper.SetDefault("backend.api_key", "kanri-dev")
	viper.SetDefault("session_file", filepath.Join(defaultDir, "session.json"))
	viper.SetDefault("project", "")
	viper.SetDefault("serve.port", 8765)
	viper.SetDefault("serve.db_path", filepath.Join(defaultDir, "dev.db"))
	viper.SetDefault("serve.jwt_secret", "kanri-dev-secret")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	client = backend.New(backend.Config{
		URL:    viper.GetString("backend.url"),
		APIKey: viper.GetString("backend.api_key"),
	})

	// Restore the cached session, if any. An unreadable cache is not
	// fatal; the user just appears signed out.
	if s, err := backend.LoadSessionFile(sessionPath()); err == nil && s != nil {
		client.RestoreSession(s)
	}
}

func sessionPath() string {
	return viper.GetString("session_file")
}

// currentIdentity returns the signed-in identity or an instructive error.
func currentIdentity() (*models.Identity, error) {
	s := client.CurrentSession()
	if s == nil || s.User == nil {
		return nil, fmt.Errorf("not signed in (run 'kanri auth login' first)")
	}
	return s.User, nil
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
