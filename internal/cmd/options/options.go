package options

import (
	"github.com/relaypoint/mcpgw/internal/config"
)

type CmdOption func(*CmdOptions) error

// CmdOptions carries injectable collaborators for commands, so tests can
// swap out the config loader without touching the filesystem.
type CmdOptions struct {
	ConfigLoader config.Loader
}

func defaultOptions() CmdOptions {
	return CmdOptions{
		ConfigLoader: &config.DefaultLoader{},
	}
}

func NewOptions(opt ...CmdOption) (CmdOptions, error) {
	opts := defaultOptions()

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return CmdOptions{}, err
		}
	}
	return opts, nil
}

func WithConfigLoader(l config.Loader) CmdOption {
	return func(o *CmdOptions) error {
		o.ConfigLoader = l
		return nil
	}
}
