package dist

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
)

const (
	defaultMasterAddr = "127.0.0.1"
	defaultMasterPort = "29500"
)

// Env is the distributed process identity handed out by the launcher.
type Env struct {
	Rank       int
	WorldSize  int
	LocalRank  int
	MasterAddr string
	MasterPort string
}

// EnvFromOS reads WORLD_SIZE, RANK, LOCAL_RANK, MASTER_ADDR and
// MASTER_PORT. Missing variables fall back to a single-process job on
// the default rendezvous address.
func EnvFromOS() (Env, error) {
	worldSize, err := envInt("WORLD_SIZE", 1)
	if err != nil {
		return Env{}, err
	}
	rank, err := envInt("RANK", 0)
	if err != nil {
		return Env{}, err
	}
	localRank, err := envInt("LOCAL_RANK", 0)
	if err != nil {
		return Env{}, err
	}

	env := Env{
		Rank:       rank,
		WorldSize:  worldSize,
		LocalRank:  localRank,
		MasterAddr: envString("MASTER_ADDR", defaultMasterAddr),
		MasterPort: envString("MASTER_PORT", defaultMasterPort),
	}
	if env.WorldSize < 1 {
		return Env{}, fmt.Errorf("dist: WORLD_SIZE must be at least 1, got %d", env.WorldSize)
	}
	if env.Rank < 0 || env.Rank >= env.WorldSize {
		return Env{}, fmt.Errorf("dist: RANK %d out of range [0, %d)", env.Rank, env.WorldSize)
	}
	return env, nil
}

// Connect initializes the process group described by env. Single-process
// jobs never touch the network.
func Connect(ctx context.Context, env Env) (Group, error) {
	if env.WorldSize == 1 {
		return Single{}, nil
	}
	addr := net.JoinHostPort(env.MasterAddr, env.MasterPort)
	return NewTCPGroup(ctx, env.Rank, env.WorldSize, addr)
}

func envInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("dist: %s=%q is not an integer", name, raw)
	}
	return value, nil
}

func envString(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
