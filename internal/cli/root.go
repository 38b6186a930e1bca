package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/git-pkgs/pyintel"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version string
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// app is the state shared by all commands of one invocation.
type app struct {
	v          *viper.Viper
	configPath string
	jsonOut    bool
	verbose    bool
	logLevel   string

	client *pyintel.Client
	out    *printer
}

// Execute runs the pyintel CLI until ctx is cancelled.
func Execute(ctx context.Context) error {
	return newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "pyintel",
		Short:         "pyintel inspects Python packages",
		Long:          `pyintel gathers metadata, download statistics, vulnerabilities, dependency trees, changelogs, health scores and license compatibility for packages on PyPI.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(fmt.Sprintf("pyintel %s\ncommit: %s\nbuilt: %s\n", version, commit, date))

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default is $HOME/.pyintel.yaml)")
	pf.BoolVar(&a.jsonOut, "json", false, "print results as JSON")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVarP(&a.logLevel, "log-level", "l", "warn", "log level: debug, info, warn, error")
	addConfigFlags(pf)

	root.AddCommand(
		newInfoCmd(a),
		newStatsCmd(a),
		newVulnsCmd(a),
		newDepsCmd(a),
		newHealthCmd(a),
		newChangelogCmd(a),
		newLicenseCmd(a),
		newAnalyzeCmd(a),
	)
	return root
}

// setup attaches the logger and builds the client from config.
func (a *app) setup(cmd *cobra.Command) error {
	level := parseLevel(a.logLevel)
	if a.verbose {
		level = charmlog.DebugLevel
	}
	logger := newLogger(cmd.ErrOrStderr(), level)
	cmd.SetContext(withLogger(cmd.Context(), logger))

	cfg, err := loadConfig(a.v, a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger.Debug("config loaded", "file", a.v.ConfigFileUsed(), "concurrency", cfg.Concurrency, "timeout", cfg.Timeout)

	a.client = newClient(cfg, logger)
	a.out = &printer{w: cmd.OutOrStdout(), json: a.jsonOut}
	return nil
}
