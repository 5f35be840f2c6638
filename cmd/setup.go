package cmd

import (
	"fmt"

	"m-cpulimit/liblimit/cgroup"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// m-cpulimit setup 命令
// 以 root 身份执行一次，之后的 limit 不再需要特权
var SetupCommand = cli.Command{
	Name:      "setup",
	Usage:     `create the cgroup root and hand it over to an unprivileged user`,
	UsageText: `sudo m-cpulimit setup`,

	Action: func(context *cli.Context) error {
		conf, err := loadConfig(context)
		if err != nil {
			return err
		}
		store, err := cgroup.Open(conf)
		if err != nil {
			return err
		}
		root, err := store.EnsureRoot()
		if err != nil {
			return fmt.Errorf("ensure cgroup root: %w", err)
		}
		log.Infof("cgroup root %s (%s, cgroup %s)", root.Path, root.State, store.Layout().Version())
		return syncOwnership(conf, store, root)
	},
}
