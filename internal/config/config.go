// Package config provides the shared TOML-file-plus-flags configuration
// loading pattern used by both the master and slave commands (spec
// §6 command-line flags).
//
// Grounded on the teacher's pkg/cmd/util.StrictDecodeFile: a config file
// is decoded with github.com/BurntSushi/toml and any key it doesn't
// recognize is a hard error, so a typo in a deployed config file is
// caught at startup instead of silently ignored.
package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"

	"github.com/AHINK/mesos/internal/logutil"
)

// StrictDecodeFile decodes the TOML file at path into cfg, failing if the
// file contains any key cfg does not declare (aside from ignoreCheckItems,
// matched against the first path component of the undecoded key).
func StrictDecodeFile(path, component string, cfg interface{}, ignoreCheckItems ...string) error {
	metaData, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return errors.Trace(err)
	}

	hasIgnoreItem := func(item []string) bool {
		for _, ignore := range ignoreCheckItems {
			if item[0] == ignore {
				return true
			}
		}
		return false
	}

	undecoded := metaData.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	var b strings.Builder
	n := 0
	for _, item := range undecoded {
		if hasIgnoreItem(item) {
			continue
		}
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteString(item.String())
		n++
	}
	if n == 0 {
		return nil
	}
	return errors.Errorf("component %s's config file %s contained unknown configuration options: %s",
		component, path, b.String())
}

// MasterConfig is the master process's full configuration surface (spec
// §6 master flags).
type MasterConfig struct {
	Port       int            `toml:"port"`
	Allocator  string         `toml:"allocator"`
	WebUIPort  int            `toml:"webui-port"`
	WorkDir    string         `toml:"work-dir"`
	Log        logutil.Config `toml:"log"`
}

// DefaultMasterConfig returns the master's out-of-the-box configuration.
func DefaultMasterConfig() *MasterConfig {
	return &MasterConfig{
		Port:      5050,
		Allocator: "dominant",
		WebUIPort: 5050,
		WorkDir:   "/tmp/mesos-master",
		Log:       logutil.Config{Level: "info"},
	}
}

// SlaveConfig is the slave process's full configuration surface (spec §6
// slave flags).
type SlaveConfig struct {
	Master      string         `toml:"master"`
	Resources   string         `toml:"resources"`
	WorkDir     string         `toml:"work-dir"`
	SwitchUser  bool           `toml:"switch-user"`
	Port        int            `toml:"port"`
	Log         logutil.Config `toml:"log"`
}

// DefaultSlaveConfig returns the slave's out-of-the-box configuration.
func DefaultSlaveConfig() *SlaveConfig {
	return &SlaveConfig{
		Resources:  "cpus:1;mem:1024",
		WorkDir:    "/tmp/mesos-slave",
		SwitchUser: false,
		Port:       5051,
		Log:        logutil.Config{Level: "info"},
	}
}
