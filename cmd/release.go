package cmd

import (
	"fmt"

	"m-cpulimit/liblimit/cgroup"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// m-cpulimit release 命令
var ReleaseCommand = cli.Command{
	Name:      "release",
	Usage:     `remove the cgroup node of a process`,
	UsageText: `m-cpulimit release PID`,
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "p, pid",
			Usage: "target process id",
		},
	},

	Action: func(context *cli.Context) error {
		conf, err := loadConfig(context)
		if err != nil {
			return err
		}
		pid, err := targetPid(context)
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
		node, err := store.Lookup(root, conf.NodeName(pid))
		if err != nil {
			return fmt.Errorf("pid %d is not limited: %w", pid, err)
		}

		// 节点中仍有进程时内核会拒绝删除
		if info, err := store.Inspect(node); err == nil && len(info.Tasks) > 0 {
			log.Warnf("%s still has tasks %s", node.Path, joinPids(info.Tasks))
		}
		if err := store.RemoveNode(node); err != nil {
			return err
		}
		fmt.Printf("%s\n", node.Path)
		return nil
	},
}
