package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/constant"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// GlobalFlags 是所有子命令共用的 flag，会覆盖配置文件中的值
var GlobalFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "debug", // 启用 debug 模式
		Usage: "enable debug mode",
	},
	cli.StringFlag{
		Name:  "config",
		Usage: "config file",
		Value: constant.ConfigPath,
	},
	cli.StringFlag{
		Name:   "mount",
		Usage:  "cgroup mount point",
		EnvVar: constant.ENV_MOUNT_POINT,
	},
	cli.StringFlag{
		Name:   "root",
		Usage:  "cgroup root path, overrides the path derived from the mount point",
		EnvVar: constant.ENV_ROOT_PATH,
	},
	cli.StringFlag{
		Name:  "cgroup-version",
		Usage: "cgroup version: auto, v1 or v2",
	},
	cli.Uint64Flag{
		Name:  "period",
		Usage: "cpu period in microseconds",
	},
	cli.IntFlag{
		Name:   "uid",
		Usage:  "owner of the cgroup hierarchy",
		Value:  config.PrincipalUnset,
		EnvVar: constant.ENV_UID,
	},
	cli.IntFlag{
		Name:   "gid",
		Usage:  "group of the cgroup hierarchy",
		Value:  config.PrincipalUnset,
		EnvVar: constant.ENV_GID,
	},
	cli.StringFlag{
		Name:  "metrics-textfile",
		Usage: "write metrics to this file on exit, for the node_exporter textfile collector",
	},
}

// loadConfig 读取配置文件，再用全局 flag 覆盖
// 1. 配置文件不存在且没有显式指定时使用默认配置
// 2. 覆盖 flag 和环境变量中设置的值
// 3. 确定 cgroup 层级的属主
func loadConfig(context *cli.Context) (*config.Config, error) {
	conf, err := readConfigFile(context.GlobalString("config"), context.GlobalIsSet("config"))
	if err != nil {
		return nil, err
	}

	if context.GlobalIsSet("mount") {
		conf.MountPoint = context.GlobalString("mount")
	}
	if context.GlobalIsSet("root") {
		conf.RootPath = context.GlobalString("root")
	}
	if context.GlobalIsSet("cgroup-version") {
		conf.CgroupVersion = context.GlobalString("cgroup-version")
	}
	if context.GlobalIsSet("period") {
		conf.Period = context.GlobalUint64("period")
	}
	if context.GlobalIsSet("uid") {
		conf.UID = context.GlobalInt("uid")
	}
	if context.GlobalIsSet("gid") {
		conf.GID = context.GlobalInt("gid")
	}
	if context.IsSet("enforcer") {
		conf.Enforcer = context.String("enforcer")
	}

	if err := resolvePrincipal(conf, os.Getenv); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}
	return conf, nil
}

func readConfigFile(path string, explicit bool) (*config.Config, error) {
	conf, err := config.LoadFile(path)
	if err == nil {
		log.Debugf("load config from %s", path)
		return conf, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}

// resolvePrincipal 确定 cgroup 层级的属主：显式指定的 uid/gid，其次是 sudo 的调用者，最后是当前用户
func resolvePrincipal(conf *config.Config, getenv func(string) string) error {
	if conf.UID == config.PrincipalUnset {
		uid, err := principalFromEnv(getenv, constant.ENV_SUDO_UID, os.Getuid())
		if err != nil {
			return err
		}
		conf.UID = uid
	}
	if conf.GID == config.PrincipalUnset {
		gid, err := principalFromEnv(getenv, constant.ENV_SUDO_GID, os.Getgid())
		if err != nil {
			return err
		}
		conf.GID = gid
	}
	log.Debugf("cgroup hierarchy owner %d:%d", conf.UID, conf.GID)
	return nil
}

func principalFromEnv(getenv func(string) string, key string, fallback int) (int, error) {
	v := getenv(key)
	if v == "" {
		return fallback, nil
	}
	id, err := strconv.Atoi(v)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return id, nil
}

// targetPid 从 --pid 或第一个参数中读取 PID
func targetPid(context *cli.Context) (int, error) {
	if context.IsSet("pid") {
		return context.Int("pid"), nil
	}
	if len(context.Args()) < 1 {
		return 0, fmt.Errorf("missing pid")
	}
	pid, err := strconv.Atoi(context.Args().Get(0))
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q", context.Args().Get(0))
	}
	return pid, nil
}
