package dist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvFromOSDefaults(t *testing.T) {
	t.Setenv("WORLD_SIZE", "")
	t.Setenv("RANK", "")
	t.Setenv("LOCAL_RANK", "")
	t.Setenv("MASTER_ADDR", "")
	t.Setenv("MASTER_PORT", "")

	env, err := EnvFromOS()
	require.NoError(t, err)
	require.Equal(t, 1, env.WorldSize)
	require.Equal(t, 0, env.Rank)
	require.Equal(t, 0, env.LocalRank)
	require.Equal(t, defaultMasterAddr, env.MasterAddr)
	require.Equal(t, defaultMasterPort, env.MasterPort)
}

func TestEnvFromOS(t *testing.T) {
	t.Setenv("WORLD_SIZE", "4")
	t.Setenv("RANK", "2")
	t.Setenv("LOCAL_RANK", "1")
	t.Setenv("MASTER_ADDR", "10.0.0.1")
	t.Setenv("MASTER_PORT", "12345")

	env, err := EnvFromOS()
	require.NoError(t, err)
	require.Equal(t, 4, env.WorldSize)
	require.Equal(t, 2, env.Rank)
	require.Equal(t, 1, env.LocalRank)
	require.Equal(t, "10.0.0.1", env.MasterAddr)
	require.Equal(t, "12345", env.MasterPort)
}

func TestEnvFromOSInvalid(t *testing.T) {
	t.Setenv("WORLD_SIZE", "three")
	_, err := EnvFromOS()
	require.Error(t, err)

	t.Setenv("WORLD_SIZE", "2")
	t.Setenv("RANK", "2")
	_, err = EnvFromOS()
	require.Error(t, err)
}

func TestConnectSingle(t *testing.T) {
	group, err := Connect(context.Background(), Env{WorldSize: 1})
	require.NoError(t, err)
	require.IsType(t, Single{}, group)
}
