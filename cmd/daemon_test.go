package cmd

import (
	"fmt"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	internalcmd "github.com/relaypoint/mcpgw/internal/cmd"
	cmdopts "github.com/relaypoint/mcpgw/internal/cmd/options"
	"github.com/relaypoint/mcpgw/internal/config"
)

type failingLoader struct{}

func (f *failingLoader) Load(path string) (*config.Config, error) {
	return nil, fmt.Errorf("no config at %s", path)
}

func newBaseCmd() *internalcmd.BaseCmd {
	c := &internalcmd.BaseCmd{}
	c.SetLogger(hclog.NewNullLogger())
	return c
}

func TestNewDaemonCmd_Flags(t *testing.T) {
	cobraCmd, err := NewDaemonCmd(newBaseCmd())
	require.NoError(t, err)

	require.Equal(t, "daemon [--dev] [--addr]", cobraCmd.Use)

	addrFlag := cobraCmd.Flags().Lookup("addr")
	require.NotNil(t, addrFlag)
	require.Equal(t, "0.0.0.0:8090", addrFlag.DefValue)

	devFlag := cobraCmd.Flags().Lookup("dev")
	require.NotNil(t, devFlag)
	require.Equal(t, "false", devFlag.DefValue)
}

func TestDaemonCmd_ConfigLoadFailure(t *testing.T) {
	cobraCmd, err := NewDaemonCmd(newBaseCmd(), cmdopts.WithConfigLoader(&failingLoader{}))
	require.NoError(t, err)

	cobraCmd.SilenceUsage = true
	cobraCmd.SilenceErrors = true
	cobraCmd.SetArgs([]string{})

	err = cobraCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "error loading config")
}

func TestNewRootCmd_RegistersDaemon(t *testing.T) {
	rootCmd, err := NewRootCmd()
	require.NoError(t, err)

	sub, _, err := rootCmd.Find([]string{"daemon"})
	require.NoError(t, err)
	require.Equal(t, "daemon [--dev] [--addr]", sub.Use)
}
