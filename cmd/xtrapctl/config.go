package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xtrap/pkg/config/xconf"
	"github.com/omeyang/xtrap/pkg/observability/xlog"
)

// appConfig 是 xtrapctl 的完整配置。
type appConfig struct {
	Log   logConfig   `koanf:"log"`
	Trap  trapConfig  `koanf:"trap"`
	Hub   hubConfig   `koanf:"hub"`
	Arm   armConfig   `koanf:"arm"`
	Watch watchConfig `koanf:"watch"`
}

type logConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

type trapConfig struct {
	Name        string `koanf:"name"`
	MaxBlockers int    `koanf:"max_blockers"`
}

type hubConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

// armConfig 控制 watch 命令重新武装时的重试。
type armConfig struct {
	Attempts uint          `koanf:"attempts"`
	Delay    time.Duration `koanf:"delay"`
}

type watchConfig struct {
	// ReportInterval 为正数时周期性输出 trap 状态。
	ReportInterval time.Duration `koanf:"report_interval"`
}

func configDefaults() map[string]any {
	return map[string]any{
		"log.level":             "info",
		"log.format":            "text",
		"log.file":              "",
		"trap.name":             "xtrapctl",
		"trap.max_blockers":     0,
		"hub.workers":           4,
		"hub.queue_size":        256,
		"arm.attempts":          3,
		"arm.delay":             "50ms",
		"watch.report_interval": "0s",
	}
}

// loadConfig 读取配置文件（path 为空时只用默认值）。
func loadConfig(path string) (xconf.Config, appConfig, error) {
	var (
		cfg xconf.Config
		err error
	)
	if path == "" {
		cfg, err = xconf.NewFromBytes(nil, xconf.FormatYAML, xconf.WithDefaults(configDefaults()))
	} else {
		cfg, err = xconf.New(path, xconf.WithDefaults(configDefaults()))
	}
	if err != nil {
		return nil, appConfig{}, err
	}
	app, err := decodeConfig(cfg)
	if err != nil {
		return nil, appConfig{}, err
	}
	return cfg, app, nil
}

func decodeConfig(cfg xconf.Config) (appConfig, error) {
	var app appConfig
	if err := cfg.Unmarshal("", &app); err != nil {
		return appConfig{}, err
	}
	if err := app.validate(); err != nil {
		return appConfig{}, err
	}
	return app, nil
}

func (c appConfig) validate() error {
	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if c.Trap.MaxBlockers < 0 {
		return fmt.Errorf("trap.max_blockers: must not be negative, got %d", c.Trap.MaxBlockers)
	}
	if c.Hub.Workers <= 0 || c.Hub.QueueSize <= 0 {
		return fmt.Errorf("hub: workers and queue_size must be positive")
	}
	if c.Arm.Attempts == 0 {
		return fmt.Errorf("arm.attempts: must be positive")
	}
	if c.Arm.Delay < 0 {
		return fmt.Errorf("arm.delay: must not be negative")
	}
	return nil
}

// overrideFromFlags 用显式给出的全局 flag 覆盖配置。
func (c *appConfig) overrideFromFlags(cmd *cli.Command) {
	if cmd.IsSet("log-level") {
		c.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		c.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("log-file") {
		c.Log.File = cmd.String("log-file")
	}
}

// buildLogger 按配置创建 logger，返回的 cleanup 关闭轮转文件。
func buildLogger(c logConfig) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(c.Level).
		SetFormat(c.Format).
		SetAttrs(xlog.Component("xtrapctl"))
	if c.File != "" {
		b = b.SetRotation(c.File, xlog.WithMaxSize(50), xlog.WithMaxBackups(3))
	}
	return b.Build()
}

// setup 加载配置、应用 flag 覆盖并创建 logger。
func setup(cmd *cli.Command) (xconf.Config, appConfig, xlog.LoggerWithLevel, func() error, error) {
	cfg, app, err := loadConfig(cmd.String("config"))
	if err != nil {
		return nil, appConfig{}, nil, nil, err
	}
	app.overrideFromFlags(cmd)
	if err := app.validate(); err != nil {
		return nil, appConfig{}, nil, nil, newUsageError("%v", err)
	}
	logger, cleanup, err := buildLogger(app.Log)
	if err != nil {
		return nil, appConfig{}, nil, nil, err
	}
	return cfg, app, logger, cleanup, nil
}
