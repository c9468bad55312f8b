package config

import (
	_ "embed"
	"focus-write/biz/infrastructure/util/log"
	"os"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/service"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
)

// //go:embed config.local.yaml
var embeddedConfig []byte

var config *Config

type Auth struct {
	SecretKey    string
	PublicKey    string
	AccessExpire int64
}

// Proctor 监考参数，缺省值见 consts
type Proctor struct {
	StrikeDebounceMs     int64 `json:",default=800"`
	AutosaveIntervalMs   int64 `json:",default=4000"`
	SandboxReturnSeconds int64 `json:",default=10"`
}

// Archive 已提交答卷的对象存储归档，Bucket 为空时关闭
type Archive struct {
	Endpoint        string `json:",optional"`
	Region          string `json:",optional"`
	Bucket          string `json:",optional"`
	AccessKeyId     string `json:",optional"`
	SecretAccessKey string `json:",optional"`
}

type API struct {
	WriteBaseURL string `json:",optional"`
}

type Config struct {
	service.ServiceConf
	ListenOn string
	State    string
	Auth     Auth
	Api      API
	Mongo    struct {
		URL string
		DB  string
	}
	Cache   cache.CacheConf
	Redis   *redis.RedisConf
	Proctor Proctor
	Archive Archive
	Log     LogConfig
}

type LogConfig struct {
	NoLogPaths []string
}

func NewConfig() (*Config, error) {
	c := new(Config)

	if len(embeddedConfig) == 0 {
		path := os.Getenv("CONFIG_PATH")
		log.Info("NewConfig load config from path: %s", path)
		err := conf.Load(path, c)
		if err != nil {
			return nil, err
		}
	} else {
		err := conf.LoadFromYamlBytes(embeddedConfig, c)
		if err != nil {
			return nil, err
		}
	}

	err := c.SetUp()
	if err != nil {
		return nil, err
	}
	config = c
	return c, nil
}

func GetConfig() *Config {
	return config
}
