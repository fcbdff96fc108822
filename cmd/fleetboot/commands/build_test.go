package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetboot/cmd/fleetboot/handlers"
)

func TestBuild(t *testing.T) {
	cmd := Build(&handlers.Globals{})

	require.NotNil(t, cmd)
	assert.Equal(t, "build <build> <tag>", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuild_Flags(t *testing.T) {
	cmd := Build(&handlers.Globals{})

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{name: "count", shorthand: "n", def: "1"},
		{name: "project", shorthand: "p", def: ""},
		{name: "yes", shorthand: "y", def: "false"},
	}
	for _, tt := range tests {
		flag := cmd.Flags().Lookup(tt.name)
		require.NotNil(t, flag, "flag %s should exist", tt.name)
		assert.Equal(t, tt.shorthand, flag.Shorthand)
		assert.Equal(t, tt.def, flag.DefValue)
	}
}

func TestProjectLaunch(t *testing.T) {
	cmd := Project(&handlers.Globals{})

	launch, _, err := cmd.Find([]string{"launch"})
	require.NoError(t, err)
	assert.Equal(t, "launch <project> <tag>", launch.Use)
	assert.NotNil(t, launch.Flags().Lookup("yes"))
}
