package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/wfunc/robots/game"
	"github.com/wfunc/robots/wire"
)

const envPrefix = "ROBOTS"

type ServerConfig struct {
	Game           game.Params
	WSPort         uint16 // 0 disables the websocket listener
	RPCAddress     string // empty disables the admin RPC
	MetricsAddress string // empty disables /metrics
	LogLevel       string
}

type ClientConfig struct {
	PlayerName    string
	Port          uint16 // UDP port the display sends input to
	GUIAddress    string
	ServerAddress string
	LogLevel      string
}

// LoadServer reads flags from args, then ROBOTS_* variables, then an optional
// yaml file (--config, or robots-server.yaml in the working directory).
func LoadServer(args []string) (*ServerConfig, error) {
	fs := pflag.NewFlagSet("robots-server", pflag.ContinueOnError)
	fs.String("config", "", "path to a yaml config file")
	fs.Uint64P("bomb-timer", "b", 5, "turns until a bomb explodes")
	fs.Uint64P("players-count", "c", 2, "players needed to start a round")
	fs.Uint64P("turn-duration", "d", 500, "turn length in milliseconds")
	fs.Uint64P("explosion-radius", "e", 3, "explosion ray length")
	fs.Uint64P("initial-blocks", "k", 10, "blocks placed at round start")
	fs.Uint64P("game-length", "l", 100, "turns per round")
	fs.StringP("server-name", "n", "robots", "name shown to clients")
	fs.Uint64P("port", "p", 2137, "TCP port for game clients")
	fs.Uint64P("seed", "s", 0, "PRNG seed (default: derived from the clock)")
	fs.Uint64P("size-x", "x", 10, "board width")
	fs.Uint64P("size-y", "y", 10, "board height")
	fs.Uint64("ws-port", 0, "websocket port for game clients (0 = off)")
	fs.String("rpc-address", "", "admin RPC listen address")
	fs.String("metrics-address", "", "prometheus listen address")
	fs.String("log-level", "info", "debug, info, warn or error")

	v, err := load(fs, args, "robots-server")
	if err != nil {
		return nil, err
	}

	var errs error
	check := func(key string, min, max uint64) uint64 {
		n := v.GetUint64(key)
		if n < min || n > max {
			errs = multierr.Append(errs, fmt.Errorf("%s must be in [%d, %d], got %d", key, min, max, n))
		}
		return n
	}

	cfg := &ServerConfig{
		Game: game.Params{
			Name:            v.GetString("server-name"),
			PlayersCount:    uint8(check("players-count", 1, math.MaxUint8)),
			SizeX:           uint16(check("size-x", 1, math.MaxUint16)),
			SizeY:           uint16(check("size-y", 1, math.MaxUint16)),
			GameLength:      uint16(check("game-length", 1, math.MaxUint16)),
			ExplosionRadius: uint16(check("explosion-radius", 0, math.MaxUint16)),
			BombTimer:       uint16(check("bomb-timer", 1, math.MaxUint16)),
			TurnDuration:    time.Duration(check("turn-duration", 1, uint64(math.MaxInt64/time.Millisecond))) * time.Millisecond,
			InitialBlocks:   uint16(check("initial-blocks", 0, math.MaxUint16)),
			Port:            uint16(check("port", 0, math.MaxUint16)),
		},
		WSPort:         uint16(check("ws-port", 0, math.MaxUint16)),
		RPCAddress:     v.GetString("rpc-address"),
		MetricsAddress: v.GetString("metrics-address"),
		LogLevel:       v.GetString("log-level"),
	}

	if v.IsSet("seed") {
		seed := check("seed", 1, math.MaxUint32)
		if !game.ValidSeed(uint32(seed)) {
			errs = multierr.Append(errs, fmt.Errorf("seed %d is a multiple of the generator modulus", seed))
		}
		cfg.Game.Seed = uint32(seed)
	} else {
		cfg.Game.Seed = ClockSeed(time.Now())
	}

	p := cfg.Game
	if len(p.Name) > wire.MaxStringLen {
		errs = multierr.Append(errs, fmt.Errorf("server-name is longer than %d bytes", wire.MaxStringLen))
	}
	if cells := uint64(p.SizeX) * uint64(p.SizeY); uint64(p.PlayersCount)+uint64(p.InitialBlocks) > cells {
		errs = multierr.Append(errs, fmt.Errorf("%d players and %d blocks do not fit on %d cells", p.PlayersCount, p.InitialBlocks, cells))
	}
	for _, key := range []string{"rpc-address", "metrics-address"} {
		if addr := v.GetString(key); addr != "" {
			errs = multierr.Append(errs, checkHostPort(key, addr))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

// LoadClient reads the bridge configuration the same way LoadServer does,
// with robots-client.yaml as the default file.
func LoadClient(args []string) (*ClientConfig, error) {
	fs := pflag.NewFlagSet("robots-client", pflag.ContinueOnError)
	fs.String("config", "", "path to a yaml config file")
	fs.StringP("player-name", "n", "", "nickname sent in Join")
	fs.Uint64P("port", "p", 0, "UDP port to receive display input on")
	fs.StringP("gui-address", "d", "", "display address, host:port")
	fs.StringP("server-address", "s", "", "server address, host:port or ws://host:port/path")
	fs.String("log-level", "info", "debug, info, warn or error")

	v, err := load(fs, args, "robots-client")
	if err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		PlayerName:    v.GetString("player-name"),
		GUIAddress:    v.GetString("gui-address"),
		ServerAddress: v.GetString("server-address"),
		LogLevel:      v.GetString("log-level"),
	}

	var errs error
	if cfg.PlayerName == "" {
		errs = multierr.Append(errs, errors.New("player-name is required"))
	} else if len(cfg.PlayerName) > wire.MaxStringLen {
		errs = multierr.Append(errs, fmt.Errorf("player-name is longer than %d bytes", wire.MaxStringLen))
	}
	port := v.GetUint64("port")
	if port < 1 || port > math.MaxUint16 {
		errs = multierr.Append(errs, fmt.Errorf("port must be in [1, %d], got %d", math.MaxUint16, port))
	}
	cfg.Port = uint16(port)
	errs = multierr.Append(errs, checkHostPort("gui-address", cfg.GUIAddress))
	if strings.HasPrefix(cfg.ServerAddress, "ws://") || strings.HasPrefix(cfg.ServerAddress, "wss://") {
		if u, err := url.Parse(cfg.ServerAddress); err != nil || u.Host == "" {
			errs = multierr.Append(errs, fmt.Errorf("server-address %q is not a valid websocket url", cfg.ServerAddress))
		}
	} else {
		errs = multierr.Append(errs, checkHostPort("server-address", cfg.ServerAddress))
	}
	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

// ClockSeed derives a usable generator seed from t.
func ClockSeed(t time.Time) uint32 {
	return uint32(uint64(t.UnixNano())%(math.MaxInt32-1)) + 1
}

func load(fs *pflag.FlagSet, args []string, name string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func checkHostPort(key, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s %q is not host:port: %w", key, addr, err)
	}
	return nil
}
