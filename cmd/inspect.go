package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"m-cpulimit/liblimit/cgroup"
	"m-cpulimit/liblimit/quota"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// m-cpulimit inspect 命令
var InspectCommand = cli.Command{
	Name:      "inspect",
	Usage:     `show all the limited cgroup nodes in list`,
	UsageText: `m-cpulimit inspect`,

	Action: func(context *cli.Context) error {
		conf, err := loadConfig(context)
		if err != nil {
			return err
		}
		store, err := cgroup.Open(conf)
		if err != nil {
			return err
		}
		if err := listNodes(store); err != nil {
			return fmt.Errorf("list nodes error: %v", err)
		}
		return nil
	},
}

// 遍历根目录下的所有节点，读取 quota 和进程列表
func listNodes(store *cgroup.Store) error {
	root, err := store.Root()
	if err != nil {
		return err
	}
	nodes, err := store.Nodes(root)
	if err != nil {
		return err
	}

	infos := make([]*cgroup.NodeInfo, 0, len(nodes))
	for _, node := range nodes {
		info, err := store.Inspect(node)
		if err != nil {
			log.Warningf("inspect node %s error: %v", node.Name, err)
			continue
		}
		infos = append(infos, info)
	}

	w := tabwriter.NewWriter(os.Stdout, 12, 1, 3, ' ', 0)
	_, err = fmt.Fprintf(w, "NAME\tQUOTA\tPERIOD\tCPU%%\tTASKS\n")
	if err != nil {
		return fmt.Errorf("failed to execute fmt.Fprintf: %v", err)
	}
	for _, info := range infos {
		limit, percent := "max", "-"
		if !info.Resources.Unlimited() {
			limit = fmt.Sprint(info.Resources.CpuQuota)
			percent = fmt.Sprintf("%.2f", quota.FromQuota(info.Resources.CpuQuota, info.Resources.CpuPeriod))
		}
		_, err = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			info.Name,
			limit,
			info.Resources.CpuPeriod,
			percent,
			joinPids(info.Tasks),
		)
		if err != nil {
			return fmt.Errorf("failed to execute fmt.Fprintf: %v", err)
		}
	}
	w.Flush()

	return nil
}
