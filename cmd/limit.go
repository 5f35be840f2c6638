package cmd

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"m-cpulimit/liblimit"
	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/quota"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"
)

// m-cpulimit limit 命令
var LimitCommand = cli.Command{
	Name:      "limit",
	Usage:     `limit the cpu usage of a process`,
	UsageText: `m-cpulimit limit --cpu 50 [--children] PID`,
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "p, pid", // 也可以作为第一个参数传入
			Usage: "target process id",
		},
		cli.Float64Flag{
			Name:  "cpu", // 100 表示一个 CPU
			Usage: "cpu limit in percent, 100 is one cpu.	eg: --cpu 50",
		},
		cli.BoolFlag{
			Name:  "c, children",
			Usage: "also limit the descendants of the process",
		},
		cli.StringFlag{
			Name:  "enforcer",
			Usage: "cgroup (kernel quota) or signal (SIGSTOP/SIGCONT, blocks until interrupted)",
		},
	},

	// m-cpulimit limit 命令的入口点
	// 1. 读取配置和参数
	// 2. 创建 Enforcer
	// 3. 施加限制并打印结果
	Action: func(context *cli.Context) error {
		conf, err := loadConfig(context)
		if err != nil {
			return err
		}
		pid, err := targetPid(context)
		if err != nil {
			return err
		}
		if !context.IsSet("cpu") {
			return fmt.Errorf("\"m-cpulimit limit\" requires --cpu")
		}
		target := config.LimitTarget{
			Pid:             pid,
			Percent:         context.Float64("cpu"),
			IncludeChildren: context.Bool("children"),
		}

		// signal 模式会一直运行，直到收到 SIGINT/SIGTERM
		ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, unix.SIGTERM)
		defer stop()

		enforcer, err := liblimit.NewEnforcer(conf)
		if err != nil {
			return err
		}
		res, err := enforcer.Enforce(ctx, target)
		if err != nil {
			return fmt.Errorf("limit pid %d failed in %s: %w", pid, res.FailedIn, err)
		}
		printResult(res)
		return nil
	},
}

func printResult(res *liblimit.Result) {
	limit := quota.Format(&config.Resources{CpuQuota: res.Quota, CpuPeriod: res.Period})
	if res.Node != nil {
		fmt.Printf("%s\t%s\n", res.Node.Path, limit)
	} else {
		fmt.Printf("%s\t%s\n", res.Enforcer, limit)
	}
	fmt.Printf("attached: %s\n", joinPids(res.Attached))
	if res.PartialAttachFailure() {
		fmt.Printf("not attached: %s\n", joinPids(res.FailedPids()))
	}
	if res.PartialOwnershipFailure() {
		for _, f := range res.Ownership.Failed {
			log.Warnf("%v", f.Err)
		}
	}
}

func joinPids(pids []int) string {
	if len(pids) == 0 {
		return "-"
	}
	s := make([]string, 0, len(pids))
	for _, pid := range pids {
		s = append(s, fmt.Sprint(pid))
	}
	return strings.Join(s, ",")
}
