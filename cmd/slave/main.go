// Command slave runs a worker node: it registers with a master, launches
// executors, and relays task status back up (spec §4.4, §6 "Slave CLI").
//
// Grounded on the teacher's engine/pkg/cmd/executor options/addFlags/
// complete/run/NewCmd shape, adapted the same way as cmd/master.
package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/AHINK/mesos/internal/config"
	"github.com/AHINK/mesos/internal/logutil"
	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/messages"
	"github.com/AHINK/mesos/pkg/resources"
	"github.com/AHINK/mesos/slave"
)

// options holds the slave CLI's flags (spec §6 "Slave CLI").
type options struct {
	cfg        *config.SlaveConfig
	configFile string
	masterAddr string
}

func newOptions() *options {
	return &options{cfg: config.DefaultSlaveConfig()}
}

func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.masterAddr, "master", "", "address of the master to register with, host:port (required)")
	cmd.Flags().StringVar(&o.cfg.Resources, "resources", o.cfg.Resources, "total resources offered by this slave, e.g. cpus:4;mem:2048")
	cmd.Flags().StringVar(&o.cfg.WorkDir, "work_dir", o.cfg.WorkDir, "directory for executor working directories")
	cmd.Flags().BoolVar(&o.cfg.SwitchUser, "switch_user", o.cfg.SwitchUser, "run each executor as its framework's configured user")
	cmd.Flags().IntVar(&o.cfg.Port, "port", o.cfg.Port, "port this slave listens on")
	cmd.Flags().StringVar(&o.cfg.Log.File, "log_dir", o.cfg.Log.File, "log file path")
	cmd.Flags().StringVar(&o.cfg.Log.Level, "log_level", o.cfg.Log.Level, "log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&o.configFile, "config", "", "path of a TOML configuration file")
}

func (o *options) complete(cmd *cobra.Command) error {
	cfg := config.DefaultSlaveConfig()
	if o.configFile != "" {
		if err := config.StrictDecodeFile(o.configFile, "mesos slave", cfg); err != nil {
			return err
		}
	}

	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "resources":
			cfg.Resources = o.cfg.Resources
		case "work_dir":
			cfg.WorkDir = o.cfg.WorkDir
		case "switch_user":
			cfg.SwitchUser = o.cfg.SwitchUser
		case "port":
			cfg.Port = o.cfg.Port
		case "log_dir":
			cfg.Log.File = o.cfg.Log.File
		case "log_level":
			cfg.Log.Level = o.cfg.Log.Level
		case "master", "config":
			// applied directly below, not part of the decoded config struct
		default:
			log.Panic("unknown flag, please report a bug", zap.String("flagName", flag.Name))
		}
	})
	o.cfg = cfg
	if o.masterAddr == "" {
		return fmt.Errorf("--master is required")
	}
	return nil
}

func (o *options) run(_ *cobra.Command) error {
	if err := logutil.InitLogger(&o.cfg.Log); err != nil {
		return err
	}
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	total, err := resources.Parse(o.cfg.Resources)
	if err != nil {
		return fmt.Errorf("parsing --resources: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return err
	}

	rt := actor.NewRuntime()
	iso := slave.NewIsolation(o.cfg.SwitchUser)
	info := messages.SlaveInfo{Hostname: hostname, Resources: total}
	sl := slave.New(rt, iso, info, o.cfg.WorkDir, o.cfg.SwitchUser)

	addr := actor.NewAddress("slave", fmt.Sprintf("0.0.0.0:%d", o.cfg.Port))
	if err := rt.Spawn(addr, sl); err != nil {
		return err
	}
	if err := sl.RegisterHTTP(rt, addr); err != nil {
		return err
	}

	masterAddr := actor.NewAddress("master", o.masterAddr)
	if err := rt.Send(addr, addr, slave.NewMasterDetectedTag, masterAddr); err != nil {
		return err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if err := slave.Mount(rt, router, addr, sl.Metrics()); err != nil {
		return err
	}

	log.Info("mesos slave started", zap.String("master", o.masterAddr), zap.Int("port", o.cfg.Port))
	return router.Run(fmt.Sprintf(":%d", o.cfg.Port))
}

// NewCmdSlave creates the top-level `slave` command.
func NewCmdSlave() *cobra.Command {
	o := newOptions()
	cmd := &cobra.Command{
		Use:   "slave",
		Short: "Start a worker node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.complete(cmd); err != nil {
				return err
			}
			return o.run(cmd)
		},
	}
	o.addFlags(cmd)
	return cmd
}

func main() {
	if err := NewCmdSlave().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
