package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 默认的推文搜索关键词，config.yaml里未配置search_queries时使用
var DefaultSearchQueries = []string{
	"meme AND (coin OR token OR airdrop) lang:en min_faves:5 -filter:quote",
	"new AND (coin OR token OR airdrop) lang:en min_faves:5 -filter:quote",
	"airdrop AND (coin OR token) lang:en min_faves:5 -filter:quote",
	"crypto AND (coin OR token OR airdrop) lang:en min_faves:5 -filter:quote",
	"scam AND (coin OR token) lang:en min_faves:5 -filter:quote",
	`("ape in" OR "pumping" OR "send it" OR "moon") "$" lang:en min_faves:5 -filter:retweets -filter:quote`,
	`("should I buy" OR "worth buying" OR "next 100x") "$" lang:en min_faves:3 -filter:retweets -filter:quote`,
}

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Addr string `yaml:"-"` // 不从配置文件读取，而是在加载后计算
	} `yaml:"server"`
	ScrapeStorm struct {
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		Tag        string `yaml:"tag"`         // 搜索类型: top 或 latest
		NumPages   int    `yaml:"num_pages"`   // 每个关键词抓取的分页数
		TimeoutSec int    `yaml:"timeout_sec"` // 单次请求超时时间,单位:秒
	} `yaml:"scrapestorm"`
	OpenAI struct {
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		BaseURL    string `yaml:"base_url"`
		TimeoutSec int    `yaml:"timeout_sec"` // 单次请求超时时间,单位:秒
	} `yaml:"openai"`
	Log struct {
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		Output   string `yaml:"output"`
		FilePath string `yaml:"file_path"`
	} `yaml:"log"`

	DB struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		Username        string `yaml:"username"`
		Password        string `yaml:"password"`
		Database        string `yaml:"database"`
		Charset         string `yaml:"charset"`
		ParseTime       bool   `yaml:"parse_time"`
		DSN             string `yaml:"-"`                 // 不从配置文件读取，而是在加载后计算
		MaxOpenConns    int    `yaml:"max_open_conns"`    // 最大打开连接数
		MaxIdleConns    int    `yaml:"max_idle_conns"`    // 最大空闲连接数
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 连接最大生命周期（分钟）
	} `yaml:"database"`
	Pipeline struct {
		SearchQueries []string `yaml:"search_queries"`  // 推文搜索关键词
		BatchSize     int      `yaml:"batch_size"`      // 分类批次大小
		MaxAttempts   int      `yaml:"max_attempts"`    // 外部调用最大尝试次数
		BackoffBaseMS int      `yaml:"backoff_base_ms"` // 重试退避基础等待（毫秒）
		BackoffMaxMS  int      `yaml:"backoff_max_ms"`  // 重试退避最大等待（毫秒）
	} `yaml:"pipeline"`
	Scheduler struct {
		IngestIntervalSec int `yaml:"ingest_interval_sec"` // 采集分析周期（秒）
		CheckIntervalSec  int `yaml:"check_interval_sec"`  // 调度器检查间隔（秒）
	} `yaml:"scheduler"`
}

func Load() *Config {
	// 首先尝试加载.env文件中的环境变量
	_ = godotenv.Load() // 忽略错误，如果.env文件不存在，继续使用系统环境变量

	var cfg Config

	// 尝试从config.yaml文件加载配置
	if data, err := os.ReadFile("config.yaml"); err == nil {
		err = yaml.Unmarshal(data, &cfg)
		if err != nil {
			log.Printf("Error loading config.yaml: %v, falling back to environment variables", err)
			return loadFromEnv()
		}
		log.Println("Loading configuration from config.yaml")

		cfg.applyDefaults()
		cfg.applyEnvOverrides()
		return &cfg
	}

	// 如果config.yaml不存在，则完全从环境变量加载配置
	return loadFromEnv()
}

// applyDefaults 填充缺省值并计算派生字段
func (cfg *Config) applyDefaults() {
	cfg.Server.Addr = fmt.Sprintf(":%d", cfg.Server.Port)

	if cfg.ScrapeStorm.Tag == "" {
		cfg.ScrapeStorm.Tag = "latest"
	}
	if cfg.ScrapeStorm.NumPages <= 0 {
		cfg.ScrapeStorm.NumPages = 1
	}
	if cfg.ScrapeStorm.TimeoutSec <= 0 {
		cfg.ScrapeStorm.TimeoutSec = 60
	}

	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4.1-mini"
	}
	if cfg.OpenAI.TimeoutSec <= 0 {
		cfg.OpenAI.TimeoutSec = 60
	}

	if len(cfg.Pipeline.SearchQueries) == 0 {
		cfg.Pipeline.SearchQueries = DefaultSearchQueries
	}
	if cfg.Pipeline.BatchSize <= 0 {
		cfg.Pipeline.BatchSize = 10
	}
	if cfg.Pipeline.MaxAttempts <= 0 {
		cfg.Pipeline.MaxAttempts = 3
	}
	if cfg.Pipeline.BackoffBaseMS <= 0 {
		cfg.Pipeline.BackoffBaseMS = 1000
	}
	if cfg.Pipeline.BackoffMaxMS <= 0 {
		cfg.Pipeline.BackoffMaxMS = 10000
	}

	if cfg.Scheduler.IngestIntervalSec <= 0 {
		cfg.Scheduler.IngestIntervalSec = 600 // 默认10分钟一轮
	}
	if cfg.Scheduler.CheckIntervalSec <= 0 {
		cfg.Scheduler.CheckIntervalSec = 30
	}

	// 计算 DB.DSN 字段
	if cfg.DB.DSN == "" {
		// 设置默认值
		if cfg.DB.Charset == "" {
			cfg.DB.Charset = "utf8mb4"
		}
		cfg.DB.DSN = buildDSN(cfg)
	}
}

// applyEnvOverrides 从环境变量中加载敏感信息，覆盖配置文件里的值
func (cfg *Config) applyEnvOverrides() {
	// 数据库用户名和密码
	if envUsername := os.Getenv("DATABASE_USERNAME"); envUsername != "" {
		cfg.DB.Username = envUsername
		cfg.DB.DSN = buildDSN(cfg)
	}
	if envPassword := os.Getenv("DATABASE_PASSWORD"); envPassword != "" {
		cfg.DB.Password = envPassword
		cfg.DB.DSN = buildDSN(cfg)
	}

	// ScrapeStorm API密钥
	if envAPIKey := os.Getenv("SCRAPESTORM_API_KEY"); envAPIKey != "" {
		cfg.ScrapeStorm.APIKey = envAPIKey
	}

	// OpenAI API密钥
	if envAPIKey := os.Getenv("OPENAI_API_KEY"); envAPIKey != "" {
		cfg.OpenAI.APIKey = envAPIKey
	}
}

func buildDSN(cfg *Config) string {
	parseTime := ""
	if cfg.DB.ParseTime {
		parseTime = "&parseTime=true"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s%s",
		cfg.DB.Username,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.Database,
		cfg.DB.Charset,
		parseTime)
}

func loadFromEnv() *Config {
	// 当config.yaml加载失败时，创建一个最小配置
	var cfg Config

	// 设置服务器地址
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.DB.Host = getenv("DATABASE_HOST", "")
	if port := os.Getenv("DATABASE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	cfg.DB.Username = os.Getenv("DATABASE_USERNAME")
	cfg.DB.Password = os.Getenv("DATABASE_PASSWORD")
	cfg.DB.Database = os.Getenv("DATABASE_NAME")
	cfg.DB.ParseTime = true
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.DB.DSN = dsn
	}

	cfg.ScrapeStorm.BaseURL = os.Getenv("SCRAPESTORM_BASE_URL")
	cfg.OpenAI.BaseURL = getenv("OPENAI_BASE_URL", "https://api.openai.com")

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	log.Println("配置从环境变量加载，部分配置可能缺失")
	return &cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// BackoffBase 重试退避基础等待时间
func (cfg *Config) BackoffBase() time.Duration {
	return time.Duration(cfg.Pipeline.BackoffBaseMS) * time.Millisecond
}

// BackoffMax 重试退避最大等待时间
func (cfg *Config) BackoffMax() time.Duration {
	return time.Duration(cfg.Pipeline.BackoffMaxMS) * time.Millisecond
}
