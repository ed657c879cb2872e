package config

// Config 全局配置
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Blob   BlobConfig   `mapstructure:"blob"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	Debug   bool `mapstructure:"debug"`
}

// LLMConfig 大模型上游配置
type LLMConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// BlobConfig 对象存储配置
type BlobConfig struct {
	// Provider 可选值: cos / oss / sqlite / memory
	Provider string `mapstructure:"provider"`
	// PublicBaseURL 预置的公共访问地址,省去首次 head 探测(对应原部署的 BLOB_STORE_ID)
	PublicBaseURL string       `mapstructure:"public_base_url"`
	COS           COSConfig    `mapstructure:"cos"`
	OSS           OSSConfig    `mapstructure:"oss"`
	SQLite        SQLiteConfig `mapstructure:"sqlite"`
}

// COSConfig 腾讯云 COS 配置
type COSConfig struct {
	BucketURL string `mapstructure:"bucket_url"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
}

// OSSConfig 阿里云 OSS 配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
}

// SQLiteConfig 本地 sqlite 存储配置
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}
