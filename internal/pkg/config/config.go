package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 汇总了 order-service 运行所需的全部外部配置。
// 来源优先级：环境变量 > YAML 配置文件 > 内置默认值。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	ServiceName string `yaml:"serviceName"`
	Port        int    `yaml:"port"`
	// RequestTimeout 是对下游（商品校验、支付网关）单次请求的超时上限
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

type InfraConfig struct {
	Mysql  MysqlConfig  `yaml:"mysql"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Redis  RedisConfig  `yaml:"redis"`
	Jaeger JaegerConfig `yaml:"jaeger"`
}

type MysqlConfig struct {
	DSN string `yaml:"dsn"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	// 本服务消费的请求主题与支付完成事件主题
	OrderRequestTopic string `yaml:"orderRequestTopic"`
	PaymentEventTopic string `yaml:"paymentEventTopic"`
	// 下游协作方的请求主题
	ProductRequestTopic string `yaml:"productRequestTopic"`
	PaymentRequestTopic string `yaml:"paymentRequestTopic"`
	// 本服务等待下游应答的主题
	ReplyTopic string `yaml:"replyTopic"`
	GroupID    string `yaml:"groupId"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

var (
	current Config
	once    sync.Once
)

// Init 加载配置。configPath 为空时只使用默认值和环境变量。
func Init() {
	once.Do(func() {
		current = defaultConfig()

		if path := getEnv("CONFIG_FILE", ""); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				panic("config: cannot read " + path + ": " + err.Error())
			}
			if err := yaml.Unmarshal(data, &current); err != nil {
				panic("config: cannot parse " + path + ": " + err.Error())
			}
		}

		applyEnvOverrides(&current)
	})
}

// GetCurrentConfig 返回进程级配置。必须在 Init 之后调用。
func GetCurrentConfig() Config {
	return current
}

func defaultConfig() Config {
	return Config{
		App: AppConfig{
			ServiceName:    "order-service",
			Port:           8083,
			RequestTimeout: 5 * time.Second,
		},
		Infra: InfraConfig{
			Mysql: MysqlConfig{
				DSN: "root:root@tcp(localhost:3306)/orders?charset=utf8mb4&parseTime=True&loc=UTC",
			},
			Kafka: KafkaConfig{
				Brokers:             []string{"localhost:9092"},
				OrderRequestTopic:   "orders.requests",
				PaymentEventTopic:   "payment.succeeded",
				ProductRequestTopic: "products.requests",
				PaymentRequestTopic: "payments.requests",
				ReplyTopic:          "orders.replies",
				GroupID:             "order-service",
			},
			Redis:  RedisConfig{Addr: "localhost:6379"},
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
		},
	}
}

func applyEnvOverrides(c *Config) {
	if v := getEnv("MYSQL_DSN", ""); v != "" {
		c.Infra.Mysql.DSN = v
	}
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		c.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getEnv("REDIS_ADDR", ""); v != "" {
		c.Infra.Redis.Addr = v
	}
	if v := getEnv("JAEGER_ENDPOINT", ""); v != "" {
		c.Infra.Jaeger.Endpoint = v
	}
	if v := getEnv("REQUEST_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.App.RequestTimeout = d
		}
	}
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
