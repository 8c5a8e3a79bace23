package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StrategyConfig 单个策略配置：一个策略对应一个告警过滤器和一个标的
type StrategyConfig struct {
	Name             string // 告警主题中的策略名（邮件主题为 "Alert: {Name}"）
	InstrumentTicker string // 下单标的的ticker
}

// Config 进程级配置，启动时构造一次，之后只读
type Config struct {
	// 邮箱配置
	EmailServer   string // IMAP服务器地址，如 imap.gmail.com:993
	EmailAddress  string
	EmailPassword string
	AlertSender   string // 告警邮件的发件人标识

	// Tinkoff配置
	TinkoffToken   string
	TinkoffBaseURL string // 留空使用默认地址

	// Telegram配置
	TelegramToken   string
	TelegramAdminID int64

	// 策略列表
	Strategies []StrategyConfig

	// 轮询与监督节奏
	PollInterval     time.Duration // 每个策略worker的邮箱轮询间隔
	LivenessInterval time.Duration // 监督器存活检查间隔

	// 下单配置
	LotsPerUnit int // 告警quantity到下单手数的映射系数

	// 状态API
	APIPort int

	// 日志
	LogDir string
	Debug  bool
}

// Load 从环境变量构造配置（.env 由 main 预先加载）
func Load() (*Config, error) {
	cfg := &Config{
		EmailServer:     os.Getenv("EMAIL_SERVER"),
		EmailAddress:    os.Getenv("EMAIL_ADDRESS"),
		EmailPassword:   os.Getenv("EMAIL_PASSWORD"),
		AlertSender:     getEnv("ALERT_SENDER", "TradingView"),
		TinkoffToken:    os.Getenv("TINKOFF_API_TOKEN"),
		TinkoffBaseURL:  os.Getenv("TINKOFF_API_URL"),
		TelegramToken:   os.Getenv("TELEGRAM_API_TOKEN"),
		LogDir:          getEnv("LOG_DIR", "logs"),
		Debug:           os.Getenv("DEBUG") == "true",
	}

	var missing []string
	for name, val := range map[string]string{
		"EMAIL_SERVER":       cfg.EmailServer,
		"EMAIL_ADDRESS":      cfg.EmailAddress,
		"EMAIL_PASSWORD":     cfg.EmailPassword,
		"TINKOFF_API_TOKEN":  cfg.TinkoffToken,
		"TELEGRAM_API_TOKEN": cfg.TelegramToken,
	} {
		if val == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("缺少必需的环境变量: %s", strings.Join(missing, ", "))
	}

	adminID, err := strconv.ParseInt(os.Getenv("TELEGRAM_ADMIN_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_ADMIN_ID 无效: %w", err)
	}
	cfg.TelegramAdminID = adminID

	strategies, err := parseStrategies(os.Getenv("STRATEGIES"))
	if err != nil {
		return nil, err
	}
	cfg.Strategies = strategies

	cfg.PollInterval, err = getDuration("POLL_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}
	cfg.LivenessInterval, err = getDuration("LIVENESS_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	cfg.LotsPerUnit, err = getInt("ORDER_LOTS_PER_UNIT", 1)
	if err != nil {
		return nil, err
	}
	if cfg.LotsPerUnit < 1 {
		return nil, fmt.Errorf("ORDER_LOTS_PER_UNIT 必须 >= 1，当前为 %d", cfg.LotsPerUnit)
	}

	cfg.APIPort, err = getInt("API_PORT", 8080)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseStrategies 解析策略表，格式: "策略名:ticker,策略名:ticker"
// 省略ticker时用策略名兜底
func parseStrategies(raw string) ([]StrategyConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("缺少必需的环境变量: STRATEGIES")
	}

	var strategies []StrategyConfig
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, ticker, found := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		ticker = strings.TrimSpace(ticker)
		if name == "" {
			return nil, fmt.Errorf("STRATEGIES 格式错误: %q", entry)
		}
		if !found || ticker == "" {
			ticker = name
		}
		if seen[name] {
			return nil, fmt.Errorf("STRATEGIES 中策略名重复: %s", name)
		}
		seen[name] = true
		strategies = append(strategies, StrategyConfig{Name: name, InstrumentTicker: ticker})
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("STRATEGIES 中没有有效的策略")
	}
	return strategies, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s 无效: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s 必须为正值，当前为 %s", name, v)
	}
	return d, nil
}

func getInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s 无效: %w", name, err)
	}
	return n, nil
}
