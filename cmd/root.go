package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/cmds"
	"github.com/findy-network/findy-exchange/completionhelp"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "FCLI"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: utils.Version,
	Use:     "findy-exchange",
	Short:   "Findy exchange cli tool",
	Long: `
Findy exchange cli tool runs the connection, credential and proof exchanges
between agents sharing a relay.
	`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmds.ParseLoggingArgs(rootFlags.logging)
		handleViperFlags(cmd)
		applySettings()
	},
}

// Execute root
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// To fix errors printed twice removing the cobra generators next
		// see: https://github.com/spf13/cobra/issues/304
		// fmt.Println(err)

		os.Exit(1)
	}
}

// RootCmd returns a current root command which can be used for adding own
// commands in an own repo.
//
//	implCmd.AddCommand(listCmd)
//
// That's a helper function to extend this CLI with own commands and offering
// same base commands as this CLI.
func RootCmd() *cobra.Command {
	return rootCmd
}

// DryRun returns a value of a dry run flag. That's a helper function to extend
// this CLI with own commands and offering same base commands as this CLI.
func DryRun() bool {
	return rootFlags.dryRun
}

// RootFlags are the common flags
type RootFlags struct {
	cfgFile string
	dryRun  bool
	logging string

	dbPath       string
	dbKey        string
	relay        string
	redisAddr    string
	pollAttempts int
	pollInterval time.Duration
	backoff      string
	metricsAddr  string
}

var rootFlags = RootFlags{}

var rootEnvs = map[string]string{
	"config":        "CONFIG",
	"logging":       "LOGGING",
	"dry-run":       "DRY_RUN",
	"db-path":       "DB_PATH",
	"db-key":        "DB_KEY",
	"relay":         "RELAY",
	"redis-addr":    "REDIS_ADDR",
	"poll-attempts": "POLL_ATTEMPTS",
	"poll-interval": "POLL_INTERVAL",
	"backoff":       "BACKOFF",
	"metrics-addr":  "METRICS_ADDR",
}

func init() {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println(err)
	}))

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlags.cfgFile, "config", "", flagInfo("configuration file", "", rootEnvs["config"]))
	flags.StringVar(&rootFlags.logging, "logging", "-logtostderr=true -v=2", flagInfo("logging startup arguments", "", rootEnvs["logging"]))
	flags.BoolVarP(&rootFlags.dryRun, "dry-run", "n", false, flagInfo("perform a trial run with no changes made", "", rootEnvs["dry-run"]))
	flags.StringVar(&rootFlags.dbPath, "db-path", utils.Settings.StoragePath(), flagInfo("storage directory, memory storage if empty", "", rootEnvs["db-path"]))
	flags.StringVar(&rootFlags.dbKey, "db-key", utils.Settings.StorageKey(), flagInfo("storage key, 32 bytes in hex", "", rootEnvs["db-key"]))
	flags.StringVar(&rootFlags.relay, "relay", utils.Settings.RelayKind(), flagInfo("relay kind: memory or redis", "", rootEnvs["relay"]))
	flags.StringVar(&rootFlags.redisAddr, "redis-addr", utils.Settings.RedisAddr(), flagInfo("redis address of the relay", "", rootEnvs["redis-addr"]))
	flags.IntVar(&rootFlags.pollAttempts, "poll-attempts", utils.Settings.PollAttempts(), flagInfo("max update attempts per record, 0 is until done", "", rootEnvs["poll-attempts"]))
	flags.DurationVar(&rootFlags.pollInterval, "poll-interval", utils.Settings.PollInterval(), flagInfo("interval of the update attempts", "", rootEnvs["poll-interval"]))
	flags.StringVar(&rootFlags.backoff, "backoff", utils.Settings.BackoffKind(), flagInfo("backoff of the update attempts: constant or exponential", "", rootEnvs["backoff"]))
	flags.StringVar(&rootFlags.metricsAddr, "metrics-addr", utils.Settings.MetricsAddr(), flagInfo("address of the metrics endpoint, none if empty", "", rootEnvs["metrics-addr"]))

	for flagKey := range rootEnvs {
		if flagKey == "config" {
			continue
		}
		try.To(viper.BindPFlag(flagKey, flags.Lookup(flagKey)))
	}

	try.To(BindEnvs(rootEnvs, ""))

	try.To(rootCmd.RegisterFlagCompletionFunc("db-path",
		func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return completionhelp.StorageLocations(), cobra.ShellCompDirectiveFilterDirs
		}))
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer("-", "_")
	viper.SetEnvKeyReplacer(replacer)
	readConfigFile()
	readBoundRootFlags()
}

func readBoundRootFlags() {
	rootFlags.logging = viper.GetString("logging")
	rootFlags.dryRun = viper.GetBool("dry-run")
	rootFlags.dbPath = viper.GetString("db-path")
	rootFlags.dbKey = viper.GetString("db-key")
	rootFlags.relay = viper.GetString("relay")
	rootFlags.redisAddr = viper.GetString("redis-addr")
	rootFlags.pollAttempts = viper.GetInt("poll-attempts")
	rootFlags.pollInterval = viper.GetDuration("poll-interval")
	rootFlags.backoff = viper.GetString("backoff")
	rootFlags.metricsAddr = viper.GetString("metrics-addr")
}

// applySettings moves the root flags to the settings the commands read.
func applySettings() {
	s := utils.Settings
	s.SetStoragePath(rootFlags.dbPath)
	s.SetStorageKey(rootFlags.dbKey)
	s.SetRelayKind(rootFlags.relay)
	s.SetRedisAddr(rootFlags.redisAddr)
	s.SetPollAttempts(rootFlags.pollAttempts)
	s.SetPollInterval(rootFlags.pollInterval)
	s.SetBackoffKind(rootFlags.backoff)
	s.SetMetricsAddr(rootFlags.metricsAddr)
	s.SetVersionInfo("findy-exchange v. " + utils.Version)
}

func readConfigFile() {
	cfgEnv := os.Getenv(getEnvName("", "config"))
	if rootFlags.cfgFile != "" || cfgEnv != "" {
		printInfo := true
		if rootFlags.cfgFile == "" {
			rootFlags.cfgFile = cfgEnv
			printInfo = false
		}
		viper.SetConfigFile(rootFlags.cfgFile)
		// If a config file is found, read it in.
		if err := viper.ReadInConfig(); err == nil && printInfo {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// BindEnvs calls viper.BindEnv with envMap and cmdName which can be empty if
// flag is general.
func BindEnvs(envMap map[string]string, cmdName string) (err error) {
	defer err2.Handle(&err)
	for flagKey, envName := range envMap {
		finalEnvName := getEnvName(cmdName, envName)
		try.To(viper.BindEnv(flagKey, finalEnvName))
	}
	return nil
}

func flagInfo(info, cmdPrefix, envName string) string {
	return info + ", " + getEnvName(cmdPrefix, envName)
}

func getEnvName(cmdName, envName string) string {
	if cmdName == "" {
		return envPrefix + "_" + strings.ToUpper(envName)
	}
	return envPrefix + "_" + strings.ToUpper(cmdName) + "_" + envName
}

func handleViperFlags(cmd *cobra.Command) {
	setRequiredStringFlags(cmd)
	if cmd.HasParent() {
		handleViperFlags(cmd.Parent())
	}
}

func setRequiredStringFlags(cmd *cobra.Command) {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println(err)
	}))

	try.To(viper.BindPFlags(cmd.LocalFlags()))
	if cmd.PreRunE != nil {
		try.To(cmd.PreRunE(cmd, nil))
	}
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if viper.GetString(f.Name) != "" {
			try.To(cmd.LocalFlags().Set(f.Name, viper.GetString(f.Name)))
		}
	})
}

// SubCmdNeeded prints the help and error messages because the cmd is abstract.
func SubCmdNeeded(cmd *cobra.Command) {
	fmt.Println("Subcommand needed!")
	_ = cmd.Help()
	os.Exit(1)
}
