package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"

	"github.com/wfunc/robots/game"
)

func TestLoadServer_Flags(t *testing.T) {
	cfg, err := LoadServer([]string{
		"-b", "3", "-c", "4", "-d", "250", "-e", "2", "-k", "5", "-l", "50",
		"-n", "arena", "-p", "4000", "-s", "77", "-x", "12", "-y", "9",
		"--ws-port", "4001", "--rpc-address", "127.0.0.1:4002", "--log-level", "debug",
	})
	if err != nil {
		t.Fatalf("LoadServer failed: %v", err)
	}

	want := game.Params{
		Name:            "arena",
		PlayersCount:    4,
		SizeX:           12,
		SizeY:           9,
		GameLength:      50,
		ExplosionRadius: 2,
		BombTimer:       3,
		TurnDuration:    250 * time.Millisecond,
		InitialBlocks:   5,
		Seed:            77,
		Port:            4000,
	}
	if cfg.Game != want {
		t.Errorf("expected %+v, got %+v", want, cfg.Game)
	}
	if cfg.WSPort != 4001 || cfg.RPCAddress != "127.0.0.1:4002" || cfg.MetricsAddress != "" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected ambient settings %+v", cfg)
	}
}

func TestLoadServer_DefaultSeed(t *testing.T) {
	cfg, err := LoadServer(nil)
	if err != nil {
		t.Fatalf("LoadServer failed: %v", err)
	}
	if cfg.Game.Seed == 0 || !game.ValidSeed(cfg.Game.Seed) {
		t.Errorf("expected a usable clock seed, got %d", cfg.Game.Seed)
	}
}

func TestClockSeed(t *testing.T) {
	for _, ns := range []int64{0, 1, 2147483646, 2147483647, 1 << 62} {
		seed := ClockSeed(time.Unix(0, ns))
		if seed == 0 || !game.ValidSeed(seed) {
			t.Errorf("ClockSeed(%d) = %d is not usable", ns, seed)
		}
	}
}

func TestLoadServer_EnvOverridesDefault(t *testing.T) {
	t.Setenv("ROBOTS_PLAYERS_COUNT", "7")
	t.Setenv("ROBOTS_SERVER_NAME", "from env")

	cfg, err := LoadServer([]string{"-s", "1"})
	if err != nil {
		t.Fatalf("LoadServer failed: %v", err)
	}
	if cfg.Game.PlayersCount != 7 || cfg.Game.Name != "from env" {
		t.Errorf("environment should override defaults, got %+v", cfg.Game)
	}

	cfg, err = LoadServer([]string{"-s", "1", "-c", "3"})
	if err != nil {
		t.Fatalf("LoadServer failed: %v", err)
	}
	if cfg.Game.PlayersCount != 3 {
		t.Errorf("flags should win over the environment, got %d", cfg.Game.PlayersCount)
	}
}

func TestLoadServer_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	body := "server-name: from file\nsize-x: 20\nseed: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServer([]string{"--config", path, "-y", "3"})
	if err != nil {
		t.Fatalf("LoadServer failed: %v", err)
	}
	if cfg.Game.Name != "from file" || cfg.Game.SizeX != 20 || cfg.Game.SizeY != 3 || cfg.Game.Seed != 5 {
		t.Errorf("unexpected params %+v", cfg.Game)
	}

	if _, err := LoadServer([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("an explicit missing config file should fail")
	}
}

func TestLoadServer_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero players", []string{"-c", "0"}, "players-count"},
		{"players overflow", []string{"-c", "256"}, "players-count"},
		{"size overflow", []string{"-x", "65536"}, "size-x"},
		{"zero height", []string{"-y", "0"}, "size-y"},
		{"zero game length", []string{"-l", "0"}, "game-length"},
		{"zero bomb timer", []string{"-b", "0"}, "bomb-timer"},
		{"zero turn duration", []string{"-d", "0"}, "turn-duration"},
		{"zero seed", []string{"-s", "0"}, "seed"},
		{"degenerate seed", []string{"-s", "2147483647"}, "modulus"},
		{"seed overflow", []string{"-s", "4294967296"}, "seed"},
		{"board too small", []string{"-x", "2", "-y", "2", "-c", "2", "-k", "3"}, "do not fit"},
		{"long name", []string{"-n", strings.Repeat("n", 256)}, "server-name"},
		{"bad rpc address", []string{"--rpc-address", "nowhere"}, "rpc-address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadServer(tt.args)
			if err == nil {
				t.Fatalf("expected an error mentioning %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected an error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadServer_CollectsAllErrors(t *testing.T) {
	_, err := LoadServer([]string{"-c", "0", "-x", "0", "-l", "0"})
	if n := len(multierr.Errors(err)); n < 3 {
		t.Errorf("expected every violation reported, got %d: %v", n, err)
	}
}

func TestLoadServer_UnknownFlag(t *testing.T) {
	if _, err := LoadServer([]string{"--no-such-flag"}); err == nil {
		t.Error("unknown flags should be rejected")
	}
}

func TestLoadClient(t *testing.T) {
	cfg, err := LoadClient([]string{"-n", "alice", "-p", "3000", "-d", "localhost:3001", "-s", "[::1]:2137"})
	if err != nil {
		t.Fatalf("LoadClient failed: %v", err)
	}
	want := ClientConfig{PlayerName: "alice", Port: 3000, GUIAddress: "localhost:3001", ServerAddress: "[::1]:2137", LogLevel: "info"}
	if *cfg != want {
		t.Errorf("expected %+v, got %+v", want, *cfg)
	}

	cfg, err = LoadClient([]string{"-n", "bob", "-p", "3000", "-d", "localhost:3001", "-s", "ws://localhost:8080/ws"})
	if err != nil {
		t.Fatalf("websocket address should be accepted: %v", err)
	}
	if cfg.ServerAddress != "ws://localhost:8080/ws" {
		t.Errorf("unexpected server address %q", cfg.ServerAddress)
	}
}

func TestLoadClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing everything", nil, "player-name"},
		{"long name", []string{"-n", strings.Repeat("a", 256), "-p", "1", "-d", "h:1", "-s", "h:2"}, "player-name"},
		{"zero port", []string{"-n", "a", "-d", "h:1", "-s", "h:2"}, "port"},
		{"port overflow", []string{"-n", "a", "-p", "70000", "-d", "h:1", "-s", "h:2"}, "port"},
		{"bad gui address", []string{"-n", "a", "-p", "1", "-d", "nowhere", "-s", "h:2"}, "gui-address"},
		{"bad server address", []string{"-n", "a", "-p", "1", "-d", "h:1", "-s", "nowhere"}, "server-address"},
		{"bad websocket url", []string{"-n", "a", "-p", "1", "-d", "h:1", "-s", "ws://"}, "server-address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadClient(tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected an error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
