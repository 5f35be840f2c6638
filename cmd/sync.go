package cmd

import (
	"fmt"

	"m-cpulimit/liblimit/cgroup"
	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/metrics"
	"m-cpulimit/liblimit/ownership"

	"github.com/urfave/cli"
)

// m-cpulimit sync 命令
var SyncCommand = cli.Command{
	Name:      "sync",
	Usage:     `give the owner back every entry of the cgroup hierarchy`,
	UsageText: `m-cpulimit [--uid UID --gid GID] sync`,

	Action: func(context *cli.Context) error {
		conf, err := loadConfig(context)
		if err != nil {
			return err
		}
		store, err := cgroup.Open(conf)
		if err != nil {
			return err
		}
		root, err := store.Root()
		if err != nil {
			return err
		}
		return syncOwnership(conf, store, root)
	},
}

func syncOwnership(conf *config.Config, store *cgroup.Store, root *cgroup.Root) error {
	policy := ownership.PolicyFromConfig(conf)
	report, err := ownership.NewSyncer(store).Sync(root, policy)
	if report != nil {
		metrics.ObserveOwnership(report.Succeeded, len(report.Skipped), len(report.Failed))
	}
	if err != nil {
		return fmt.Errorf("sync ownership to %s: %w", policy, err)
	}

	fmt.Printf("%s\towner %s\tsucceeded %d\tskipped %d\tfailed %d\n",
		root.Path, policy, report.Succeeded, len(report.Skipped), len(report.Failed))
	for _, f := range report.Failed {
		fmt.Printf("%v\n", f.Err)
	}
	return nil
}
