package main

import (
	"os"

	"github.com/urfave/cli"

	log "github.com/sirupsen/logrus"

	"m-cpulimit/cmd"
	"m-cpulimit/liblimit/metrics"
)

const (
	usage = `limit the cpu usage of a process and its children with cgroups.

Run "sudo m-cpulimit setup" once, then every later "m-cpulimit limit" works without root.`
)

// main 函数是整个程序的入口
// 使用的是 github.com/urfave/cli 框架来构建命令行工具
func main() {
	app := cli.NewApp()
	app.Name = "m-cpulimit"
	app.Usage = usage

	// 添加 limit 等子命令
	app.Commands = []cli.Command{
		cmd.LimitCommand,
		cmd.InspectCommand,
		cmd.SyncCommand,
		cmd.SetupCommand,
		cmd.ReleaseCommand,
	}
	// 全局 flag
	app.Flags = cmd.GlobalFlags
	app.Before = func(context *cli.Context) error {
		// 设置日志格式
		log.SetFormatter(&log.TextFormatter{
			ForceColors:   true,
			FullTimestamp: true,
		})
		// 设置日志级别
		if context.Bool("debug") {
			log.SetLevel(log.DebugLevel)
		}

		log.SetOutput(os.Stdout)
		return nil
	}
	// 退出前导出指标
	app.After = func(context *cli.Context) error {
		path := context.String("metrics-textfile")
		if path == "" {
			return nil
		}
		if err := metrics.WriteTextfile(path); err != nil {
			log.Warnf("write metrics to %s: %v", path, err)
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
