package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/cmds/demo"
	"github.com/findy-network/findy-exchange/completionhelp"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

var demoEnvs = map[string]string{
	"scenarios":          "SCENARIOS",
	"sealed":             "SEALED",
	"redis-prefix":       "REDIS_PREFIX",
	"scheduler-interval": "SCHEDULER_INTERVAL",
}

// demoCmd represents the demo command
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Runs the exchange scenarios between two agents",
	Long: `
Runs the exchange scenarios between two in-process agents, faber and alice,
sharing one relay. The states of the records are printed as they move.

Scenarios:
	connection   Aries and legacy handshakes
	credential   holder rejects an offer and accepts the next one
	proof        proposal first proof exchange
	oob          out-of-band credential offer without a handshake

Example
	findy-exchange demo \
		--relay redis \
		--redis-addr localhost:6379 \
		--scenarios credential,proof
	`,
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		return BindEnvs(demoEnvs, "DEMO")
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err)

		c := demoFromSettings()
		try.To(c.Validate())
		if !rootFlags.dryRun {
			cmd.SilenceUsage = true
			try.To1(c.Exec(os.Stdout))
		}
		return nil
	},
}

type demoFlagValues struct {
	scenarios string
	sealed    bool
}

var (
	dCmd      = demo.DefaultValues
	demoFlags = demoFlagValues{
		scenarios: strings.Join(demo.ScenarioNames(), ","),
	}
)

// demoFromSettings builds the demo command from the settings and the demo
// flags.
func demoFromSettings() demo.Cmd {
	s := utils.Settings
	s.SetSealed(demoFlags.sealed)
	c := dCmd
	c.StoragePath = s.StoragePath()
	c.StorageKey = s.StorageKey()
	c.Relay = s.RelayKind()
	c.RedisAddr = s.RedisAddr()
	c.Sealed = s.Sealed()
	c.Policy = prot.RetryPolicy{
		MaxAttempts: s.PollAttempts(),
		Interval:    s.PollInterval(),
		Kind:        prot.BackoffKind(s.BackoffKind()),
	}
	c.MetricsAddr = s.MetricsAddr()
	c.Scenarios = splitList(demoFlags.scenarios)
	if c.RedisPrefix != "" {
		s.SetRedisPrefix(c.RedisPrefix)
	}
	s.SetSchedulerInterval(c.SchedulerInterval)
	return c
}

func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

func init() {
	defer err2.Catch(err2.Err(func(err error) {
		fmt.Println(err)
	}))

	flags := demoCmd.Flags()
	flags.StringVar(&demoFlags.scenarios, "scenarios", demoFlags.scenarios, flagInfo("comma separated scenarios", demoCmd.Name(), demoEnvs["scenarios"]))
	flags.BoolVar(&demoFlags.sealed, "sealed", utils.Settings.Sealed(), flagInfo("pack the messages on the relay", demoCmd.Name(), demoEnvs["sealed"]))
	flags.StringVar(&dCmd.RedisPrefix, "redis-prefix", dCmd.RedisPrefix, flagInfo("key prefix of the redis relay", demoCmd.Name(), demoEnvs["redis-prefix"]))
	flags.DurationVar(&dCmd.SchedulerInterval, "scheduler-interval", dCmd.SchedulerInterval, flagInfo("interval of the scheduler polling the records", demoCmd.Name(), demoEnvs["scheduler-interval"]))

	try.To(demoCmd.RegisterFlagCompletionFunc("scenarios",
		func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return completionhelp.Scenarios(demo.ScenarioNames(), toComplete), cobra.ShellCompDirectiveNoSpace
		}))

	rootCmd.AddCommand(demoCmd)
}
