package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/matishsiao/goInfo"
	"gopkg.in/yaml.v3"

	"zigbee-rgb-light/internal/color"
	"zigbee-rgb-light/internal/dispatch"
	"zigbee-rgb-light/internal/events"
	"zigbee-rgb-light/internal/ncp"
	"zigbee-rgb-light/internal/pwm"
	"zigbee-rgb-light/internal/relay"
	"zigbee-rgb-light/internal/store"
	"zigbee-rgb-light/internal/web"
	"zigbee-rgb-light/internal/zcl"
	"zigbee-rgb-light/internal/zcl/clusters"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type channelConfig struct {
	Pin       *int `yaml:"pin"`
	ActiveLow bool `yaml:"active_low"`
}

type Config struct {
	Stack struct {
		Type         string `yaml:"type"` // "serial" or "memory"
		Port         string `yaml:"port"`
		Baud         int    `yaml:"baud"`
		StartTimeout string `yaml:"start_timeout"`
	} `yaml:"stack"`
	Endpoint  uint8 `yaml:"endpoint"`
	QueueSize int   `yaml:"queue_size"`
	PWM       struct {
		pwm.Config `yaml:",inline"`
		Driver     string `yaml:"driver"` // "rpio" or "memory"
		Channels   struct {
			Red   channelConfig `yaml:"red"`
			Green channelConfig `yaml:"green"`
			Blue  channelConfig `yaml:"blue"`
		} `yaml:"channels"`
	} `yaml:"pwm"`
	Color struct {
		Mode    string `yaml:"mode"`
		Script  string `yaml:"script"`
		Timeout string `yaml:"timeout"`
	} `yaml:"color"`
	Web struct {
		Enabled        *bool    `yaml:"enabled"`
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path       string `yaml:"path"`
		MaxEntries int    `yaml:"max_entries"`
		Buffer     int    `yaml:"buffer"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
		Name        string `yaml:"name"`
		// RemoveDiscovery clears the HA entity on shutdown.
		RemoveDiscovery bool `yaml:"remove_discovery"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// pwmConfig merges the yaml channel mapping into the PWM config.
func (c *Config) pwmConfig() pwm.Config {
	pc := c.PWM.Config
	pc.Channels = make(map[pwm.ChannelID]pwm.ChannelConfig, len(pwm.Channels))
	defaults := pwm.DefaultConfig().Channels
	for ch, cc := range map[pwm.ChannelID]channelConfig{
		pwm.Red:   c.PWM.Channels.Red,
		pwm.Green: c.PWM.Channels.Green,
		pwm.Blue:  c.PWM.Channels.Blue,
	} {
		out := defaults[ch]
		if cc.Pin != nil {
			out.Pin = *cc.Pin
		}
		out.ActiveLow = cc.ActiveLow
		pc.Channels[ch] = out
	}
	return pc
}

func (c *Config) webEnabled() bool {
	return c.Web.Enabled == nil || *c.Web.Enabled
}

func (c *Config) validate() error {
	switch c.Stack.Type {
	case "serial":
		if c.Stack.Port == "" {
			return fmt.Errorf("stack.port is required for the serial stack")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown stack.type %q (supported: serial, memory)", c.Stack.Type)
	}
	if _, err := time.ParseDuration(c.Stack.StartTimeout); err != nil {
		return fmt.Errorf("stack.start_timeout: %w", err)
	}
	if c.Endpoint == 0 || c.Endpoint > 240 {
		return fmt.Errorf("endpoint must be 1-240, got %d", c.Endpoint)
	}
	if err := c.pwmConfig().Validate(); err != nil {
		return err
	}
	switch c.PWM.Driver {
	case "rpio":
		if err := pwm.CheckRPIOClock(c.pwmConfig()); err != nil {
			return err
		}
	case "memory":
	default:
		return fmt.Errorf("unknown pwm.driver %q (supported: rpio, memory)", c.PWM.Driver)
	}
	if err := color.Validate(c.Color.Mode); err != nil {
		return err
	}
	if c.Color.Mode == color.ModeLua && c.Color.Script == "" {
		return fmt.Errorf("color.script is required for mode %q", color.ModeLua)
	}
	if _, err := time.ParseDuration(c.Color.Timeout); err != nil {
		return fmt.Errorf("color.timeout: %w", err)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.Store.MaxEntries < 0 || c.Store.Buffer < 0 {
		return fmt.Errorf("store.max_entries and store.buffer must not be negative")
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("zigbee-rgb-light starting", "version", version, "endpoint", cfg.Endpoint)

	host, err := goInfo.GetInfo()
	if err != nil {
		logger.Warn("host info", "err", err)
	}
	logger.Info("host", "os", host.GoOS, "platform", host.Platform, "kernel", host.Kernel, "hostname", host.Hostname)

	registry := zcl.NewRegistry(logger)
	clusters.Light(registry)

	bus := events.NewBus(logger)

	var journal store.Journal
	if cfg.Store.Path != "" {
		bj, err := store.NewBoltJournal(cfg.Store.Path, cfg.Store.MaxEntries)
		if err != nil {
			logger.Error("open journal", "err", err)
			os.Exit(1)
		}
		defer bj.Close()
		journal = bj
		rec := store.NewRecorder(journal, cfg.Store.Buffer, skipForeign, logger)
		defer rec.Close()
		// Subscribed before the stack starts so the first signal is kept.
		bus.SubscribeAll(rec.Handle)
	}

	pwmCfg := cfg.pwmConfig()
	writer, closeWriter, err := createWriter(cfg, pwmCfg, host.GoOS, logger)
	if err != nil {
		logger.Error("create pwm writer", "err", err)
		os.Exit(1)
	}
	defer closeWriter()
	actuator := pwm.NewActuator(writer, pwmCfg, logger)

	converter, closeConverter, err := createConverter(cfg, logger)
	if err != nil {
		logger.Error("create color converter", "err", err)
		os.Exit(1)
	}
	defer closeConverter()

	dispatcher := dispatch.New(cfg.Endpoint, registry, converter, actuator, bus, logger)

	stack, err := createStack(cfg, logger)
	if err != nil {
		logger.Error("create zigbee stack", "err", err)
		os.Exit(1)
	}

	rl := relay.New(stack, dispatcher, bus, logger, cfg.QueueSize)

	startTimeout, _ := time.ParseDuration(cfg.Stack.StartTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	if err := rl.Start(ctx); err != nil {
		logger.Error("start relay", "err", err)
		cancel()
		stack.Close()
		closeConverter()
		closeWriter()
		os.Exit(1)
	}
	cancel()

	var (
		webServer  *web.Server
		httpServer *http.Server
	)
	if cfg.webEnabled() {
		webOpts := []web.ServerOption{
			web.WithVersion(version),
			web.WithRegistry(registry),
		}
		if cfg.Web.APIKey != "" {
			webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
		}
		if len(cfg.Web.AllowedOrigins) > 0 {
			webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
		}
		if journal != nil {
			webOpts = append(webOpts, web.WithJournal(journal))
		}
		webServer = web.NewServer(dispatcher, rl, bus, logger, webOpts...)

		httpServer = &http.Server{
			Addr:         cfg.Web.Listen,
			Handler:      webServer,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			logger.Info("web server starting", "addr", cfg.Web.Listen)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server", "err", err)
			}
		}()
	}

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(rl, dispatcher, bus, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mqtt.Stop()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown", "err", err)
		}
		webServer.Stop()
	}
	rl.Stop()
	if err := stack.Close(); err != nil {
		logger.Error("close zigbee stack", "err", err)
	}

	logger.Info("goodbye", "stats", rl.Stats())
}

// skipForeign keeps traffic for other endpoints out of the journal.
func skipForeign(e events.Event) bool {
	out, ok := e.Data.(dispatch.Outcome)
	return ok && out.Kind == dispatch.Ignored && out.Reason == dispatch.NotAddressed
}

func createStack(cfg *Config, logger *slog.Logger) (ncp.Stack, error) {
	switch cfg.Stack.Type {
	case "serial":
		logger.Info("using serial radio co-processor", "port", cfg.Stack.Port, "baud", cfg.Stack.Baud)
		return ncp.OpenSerial(cfg.Stack.Port, cfg.Stack.Baud, cfg.Endpoint, logger)
	case "memory":
		logger.Warn("using in-memory zigbee stack, no radio traffic will arrive")
		return ncp.NewMemoryStack(), nil
	default:
		return nil, fmt.Errorf("unknown stack type: %q (supported: serial, memory)", cfg.Stack.Type)
	}
}

func createWriter(cfg *Config, pc pwm.Config, goos string, logger *slog.Logger) (pwm.DutyWriter, func(), error) {
	switch cfg.PWM.Driver {
	case "rpio":
		if goos != "" && goos != "linux" {
			return nil, nil, fmt.Errorf("pwm driver rpio needs linux, host is %s", goos)
		}
		w, err := pwm.OpenRPIO(pc, logger)
		if err != nil {
			return nil, nil, err
		}
		return w, closeLogged(w, "close pwm writer", logger), nil
	case "memory":
		logger.Warn("using in-memory pwm writer, LEDs will not change")
		return pwm.NewMemoryWriter(pc.MaxDuty()), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown pwm driver: %q (supported: rpio, memory)", cfg.PWM.Driver)
	}
}

func createConverter(cfg *Config, logger *slog.Logger) (color.Converter, func(), error) {
	switch cfg.Color.Mode {
	case color.ModeMidpoint:
		return color.Midpoint{}, func() {}, nil
	case color.ModeXY:
		return color.XY{}, func() {}, nil
	case color.ModeLua:
		timeout, _ := time.ParseDuration(cfg.Color.Timeout)
		c, err := color.LoadLua(cfg.Color.Script, timeout, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("color script loaded", "path", cfg.Color.Script)
		return c, c.Close, nil
	default:
		return nil, nil, color.Validate(cfg.Color.Mode)
	}
}

// closeLogged returns a close func that runs at most once.
func closeLogged(c io.Closer, msg string, logger *slog.Logger) func() {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		if err := c.Close(); err != nil {
			logger.Error(msg, "err", err)
		}
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	cfg.PWM.Config = pwm.DefaultConfig()
	cfg.Endpoint = 10
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Stack.Type == "" {
		cfg.Stack.Type = "serial"
	}
	if cfg.Stack.Baud == 0 {
		cfg.Stack.Baud = 115200
	}
	if cfg.Stack.StartTimeout == "" {
		cfg.Stack.StartTimeout = "30s"
	}
	if cfg.PWM.Driver == "" {
		cfg.PWM.Driver = "rpio"
	}
	if cfg.Color.Mode == "" {
		cfg.Color.Mode = color.ModeMidpoint
	}
	if cfg.Color.Timeout == "" {
		cfg.Color.Timeout = "50ms"
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "rgb-light.db"
	}
	if cfg.Store.MaxEntries == 0 {
		cfg.Store.MaxEntries = store.DefaultMaxEntries
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "zigbee2mqtt"
	}
	if cfg.MQTT.Name == "" {
		cfg.MQTT.Name = "rgb_light"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
