/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Seednode/triviabox/admission"
	"github.com/Seednode/triviabox/games/jeopardy"
	"github.com/Seednode/triviabox/relay"
	"github.com/Seednode/triviabox/rooms"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	minRoomPlayers = 2
	maxRoomPlayers = 15
)

type Config struct {
	bind       string
	configFile string
	envFile    string
	port       int
	prefix     string
	profile    bool
	tlsCert    string
	tlsKey     string
	verbose    bool
	version    bool

	maxConnections   int
	maxPerRoom       int
	warningThreshold int
	pingTimeout      time.Duration
	sweepInterval    time.Duration

	maxPlayers        int
	roomTTL           time.Duration
	roomSweepInterval time.Duration

	broadcastLimit  int
	broadcastWindow time.Duration
	teamPenalty     string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxConnections < 1 || c.maxPerRoom < 1 {
		return errors.New("--max-connections and --max-per-room must be positive")
	}
	if c.warningThreshold < 1 || c.warningThreshold > c.maxConnections {
		return fmt.Errorf("invalid warning threshold (must be between 1-%d inclusive): %d", c.maxConnections, c.warningThreshold)
	}
	if c.pingTimeout <= 0 || c.sweepInterval <= 0 || c.roomTTL <= 0 || c.roomSweepInterval <= 0 {
		return errors.New("timeouts and sweep intervals must be positive")
	}
	if c.maxPlayers < minRoomPlayers || c.maxPlayers > maxRoomPlayers {
		return fmt.Errorf("invalid max players (must be between %d-%d inclusive): %d", minRoomPlayers, maxRoomPlayers, c.maxPlayers)
	}
	if c.broadcastLimit < 1 || c.broadcastWindow <= 0 {
		return errors.New("--broadcast-limit and --broadcast-window must be positive")
	}
	if !jeopardy.PenaltyPolicy(c.teamPenalty).Valid() {
		return fmt.Errorf("invalid team mode penalty (must be %q or %q): %q", jeopardy.PenaltyFull, jeopardy.PenaltyHalf, c.teamPenalty)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) limits() admission.Limits {
	return admission.Limits{
		MaxTotal:         c.maxConnections,
		MaxPerRoom:       c.maxPerRoom,
		WarningThreshold: c.warningThreshold,
		PingTimeout:      c.pingTimeout,
		SweepInterval:    c.sweepInterval,
	}
}

// loadEnvFile reads KEY=value pairs into the environment. A missing file is
// not an error, and variables that are already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// resolve fills every flag not given on the command line from the
// environment or the config file, in that order.
func resolve(v *viper.Viper, fs *pflag.FlagSet, cfg *Config) error {
	if !fs.Changed("env-file") {
		if path := os.Getenv("TRIVIABOX_ENV_FILE"); path != "" {
			cfg.envFile = path
		}
	}
	if err := loadEnvFile(cfg.envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	if !fs.Changed("config") {
		if path := os.Getenv("TRIVIABOX_CONFIG"); path != "" {
			cfg.configFile = path
		}
	}
	if cfg.configFile != "" {
		v.SetConfigFile(cfg.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			err = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
	return err
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRIVIABOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "triviabox",
		Short:         "A multiplayer quiz show server with admission control and a sequenced event relay.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return resolve(v, cmd.Flags(), cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	limits := admission.DefaultLimits()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRIVIABOX_BIND)")
	fs.IntVar(&cfg.broadcastLimit, "broadcast-limit", relay.DefaultLimit, "broadcasts allowed per client ip per window (env: TRIVIABOX_BROADCAST_LIMIT)")
	fs.DurationVar(&cfg.broadcastWindow, "broadcast-window", relay.DefaultWindow, "sliding window for the broadcast limit (env: TRIVIABOX_BROADCAST_WINDOW)")
	fs.StringVarP(&cfg.configFile, "config", "c", "", "path to optional yaml config file (env: TRIVIABOX_CONFIG)")
	fs.StringVar(&cfg.envFile, "env-file", ".env", "path to optional dotenv file (env: TRIVIABOX_ENV_FILE)")
	fs.IntVar(&cfg.maxConnections, "max-connections", limits.MaxTotal, "maximum concurrent relay subscriptions (env: TRIVIABOX_MAX_CONNECTIONS)")
	fs.IntVar(&cfg.maxPerRoom, "max-per-room", limits.MaxPerRoom, "maximum concurrent relay subscriptions per room (env: TRIVIABOX_MAX_PER_ROOM)")
	fs.IntVar(&cfg.maxPlayers, "max-players", rooms.DefaultMaxPlayers, "default player limit for new rooms (env: TRIVIABOX_MAX_PLAYERS)")
	fs.DurationVar(&cfg.pingTimeout, "ping-timeout", limits.PingTimeout, "time before silent connections are dropped (env: TRIVIABOX_PING_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TRIVIABOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRIVIABOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRIVIABOX_PROFILE)")
	fs.DurationVar(&cfg.roomSweepInterval, "room-sweep-interval", rooms.DefaultSweepInterval, "how often expired rooms are removed (env: TRIVIABOX_ROOM_SWEEP_INTERVAL)")
	fs.DurationVar(&cfg.roomTTL, "room-ttl", rooms.DefaultTTL, "lifetime of a room (env: TRIVIABOX_ROOM_TTL)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", limits.SweepInterval, "how often stale connections are swept and the waiting room promoted (env: TRIVIABOX_SWEEP_INTERVAL)")
	fs.StringVar(&cfg.teamPenalty, "team-mode-penalty", string(jeopardy.PenaltyHalf), "wrong answer penalty in team mode, full or half (env: TRIVIABOX_TEAM_MODE_PENALTY)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRIVIABOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRIVIABOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TRIVIABOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRIVIABOX_VERSION)")
	fs.IntVar(&cfg.warningThreshold, "warning-threshold", limits.WarningThreshold, "connection count reported as near capacity (env: TRIVIABOX_WARNING_THRESHOLD)")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("triviabox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
