// Command master runs the resource manager's master actor: the process a
// framework scheduler registers with and a slave reports to (spec §4.2,
// §6 "Master CLI").
//
// Grounded on the teacher's engine/pkg/cmd/executor options/addFlags/
// complete/run/NewCmd shape, adapted from one `server` subcommand to this
// module's single top-level command.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/AHINK/mesos/internal/config"
	"github.com/AHINK/mesos/internal/logutil"
	"github.com/AHINK/mesos/master"
	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/ids"
)

// options holds the master CLI's flags (spec §6 "Master CLI").
type options struct {
	cfg        *config.MasterConfig
	configFile string
	url        string
	quiet      bool
}

func newOptions() *options {
	return &options{cfg: config.DefaultMasterConfig()}
}

func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.cfg.Port, "port", o.cfg.Port, "port the master listens on")
	cmd.Flags().StringVar(&o.cfg.Allocator, "allocator", o.cfg.Allocator, "name of the allocator strategy to use")
	cmd.Flags().StringVar(&o.url, "url", "", "leader-election rendezvous (zoo://host:port,... or zoofile://path)")
	cmd.Flags().IntVar(&o.cfg.WebUIPort, "webui_port", o.cfg.WebUIPort, "port the master's HTTP endpoints listen on")
	cmd.Flags().StringVar(&o.cfg.WorkDir, "work_dir", o.cfg.WorkDir, "directory for master working state")
	cmd.Flags().StringVar(&o.cfg.Log.File, "log_dir", o.cfg.Log.File, "log file path")
	cmd.Flags().StringVar(&o.cfg.Log.Level, "log_level", o.cfg.Log.Level, "log level (debug|info|warn|error)")
	cmd.Flags().BoolVar(&o.quiet, "quiet", false, "suppress all logging below error level")
	cmd.Flags().StringVar(&o.configFile, "config", "", "path of a TOML configuration file")
}

func (o *options) complete(cmd *cobra.Command) error {
	cfg := config.DefaultMasterConfig()
	if o.configFile != "" {
		if err := config.StrictDecodeFile(o.configFile, "mesos master", cfg); err != nil {
			return err
		}
	}

	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "port":
			cfg.Port = o.cfg.Port
		case "allocator":
			cfg.Allocator = o.cfg.Allocator
		case "webui_port":
			cfg.WebUIPort = o.cfg.WebUIPort
		case "work_dir":
			cfg.WorkDir = o.cfg.WorkDir
		case "log_dir":
			cfg.Log.File = o.cfg.Log.File
		case "log_level":
			cfg.Log.Level = o.cfg.Log.Level
		case "quiet", "url", "config":
			// applied directly below, not part of the decoded config struct
		default:
			log.Panic("unknown flag, please report a bug", zap.String("flagName", flag.Name))
		}
	})
	cfg.Log.Quiet = o.quiet
	o.cfg = cfg
	return nil
}

func (o *options) run(_ *cobra.Command) error {
	if err := logutil.InitLogger(&o.cfg.Log); err != nil {
		return err
	}
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	alloc, err := master.NewAllocator(o.cfg.Allocator, time.Now)
	if err != nil {
		return err
	}

	rt := actor.NewRuntime()
	gen := ids.NewGenerator()
	m := master.New(gen, alloc)
	addr := actor.NewAddress("master", fmt.Sprintf("0.0.0.0:%d", o.cfg.Port))
	if err := rt.Spawn(addr, m); err != nil {
		return err
	}
	if err := m.RegisterHTTP(rt, addr); err != nil {
		return err
	}
	if err := rt.Send(addr, addr, master.StartTag, nil); err != nil {
		return err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if err := master.Mount(rt, router, addr, m.Metrics()); err != nil {
		return err
	}

	log.Info("mesos master started", zap.Int("port", o.cfg.Port), zap.Int("webui_port", o.cfg.WebUIPort))
	return router.Run(fmt.Sprintf(":%d", o.cfg.WebUIPort))
}

// NewCmdMaster creates the top-level `master` command.
func NewCmdMaster() *cobra.Command {
	o := newOptions()
	cmd := &cobra.Command{
		Use:   "master",
		Short: "Start the resource manager master",
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
	if err := NewCmdMaster().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
