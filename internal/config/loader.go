package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig 加载配置文件
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// 默认配置文件搜索路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.plantuml-chatbot")
		v.AddConfigPath("/etc/plantuml-chatbot")
	}

	// 支持环境变量
	v.SetEnvPrefix("PLANTUML")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果是找不到配置文件，则使用默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 替换环境变量
	expandEnvVars(&config)

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// Server 默认配置
	v.SetDefault("server.http.enabled", true)
	v.SetDefault("server.http.port", 8080)

	// LLM 默认配置,上游为 OpenRouter 兼容接口
	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.model", "openai/gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.max_tokens", 2048)

	// Blob 默认配置,单机部署默认走本地 sqlite
	v.SetDefault("blob.provider", "sqlite")
	v.SetDefault("blob.sqlite.path", "./data/blob.db")
}

// expandEnvVars 展开环境变量
func expandEnvVars(config *Config) {
	// 展开 LLM 配置中的环境变量
	config.LLM.APIKey = os.ExpandEnv(config.LLM.APIKey)

	// 兼容原部署的 OPENROUTER_API_KEY 环境变量
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}

	// 展开对象存储配置中的环境变量
	config.Blob.COS.SecretID = os.ExpandEnv(config.Blob.COS.SecretID)
	config.Blob.COS.SecretKey = os.ExpandEnv(config.Blob.COS.SecretKey)
	config.Blob.OSS.AccessKeyID = os.ExpandEnv(config.Blob.OSS.AccessKeyID)
	config.Blob.OSS.AccessKeySecret = os.ExpandEnv(config.Blob.OSS.AccessKeySecret)
	config.Blob.PublicBaseURL = os.ExpandEnv(config.Blob.PublicBaseURL)
}
