package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Segmenter SegmenterConfig `mapstructure:"segmenter"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	RemoveBG  RemoveBGConfig  `mapstructure:"removebg"`
	Bria      BriaConfig      `mapstructure:"bria"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	LogLevel     string        `mapstructure:"log_level"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	WarnSize     int64    `mapstructure:"warn_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// PipelineConfig 抠图流水线参数
type PipelineConfig struct {
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	QueueTimeout   time.Duration `mapstructure:"queue_timeout"`
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
	MaxWidth       int           `mapstructure:"max_width"`
	MaxHeight      int           `mapstructure:"max_height"`
	MaxPixels      int           `mapstructure:"max_pixels"`
	OutputFormat   string        `mapstructure:"output_format"`
	JPEGQuality    int           `mapstructure:"jpeg_quality"`
	ColorThreshold float64       `mapstructure:"color_threshold"`
	LabelThreshold float32       `mapstructure:"label_threshold"`
	EdgeThreshold  float64       `mapstructure:"edge_threshold"`
	MinScore       float64       `mapstructure:"min_score"`
	MaxObjects     int           `mapstructure:"max_objects"`
	FloodFill      bool          `mapstructure:"flood_fill"`
	ColorRadius    int           `mapstructure:"color_radius"`
	LabelRadius    int           `mapstructure:"label_radius"`
	BoxRadius      int           `mapstructure:"box_radius"`
}

type SegmenterConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DetectorConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBoxes int           `mapstructure:"max_boxes"`
	MinScore float64       `mapstructure:"min_score"`
}

type RemoveBGConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type BriaConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	NegativePrompt string        `mapstructure:"negative_prompt"`
	Steps          int           `mapstructure:"steps"`
	GuidanceScale  float64       `mapstructure:"guidance_scale"`
	Strength       float64       `mapstructure:"strength"`
}

// StorageConfig 结果图片存储，driver 为 local 或 s3
type StorageConfig struct {
	Driver      string        `mapstructure:"driver"`
	Dir         string        `mapstructure:"dir"`
	TTL         time.Duration `mapstructure:"ttl"`
	CleanupSpec string        `mapstructure:"cleanup_spec"`
	S3Bucket    string        `mapstructure:"s3_bucket"`
	S3Region    string        `mapstructure:"s3_region"`
	S3Prefix    string        `mapstructure:"s3_prefix"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BGENIUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := getDefaultConfig()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.warn_size", d.Upload.WarnSize)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)

	v.SetDefault("pipeline.max_concurrent", d.Pipeline.MaxConcurrent)
	v.SetDefault("pipeline.queue_timeout", d.Pipeline.QueueTimeout)
	v.SetDefault("pipeline.job_timeout", d.Pipeline.JobTimeout)
	v.SetDefault("pipeline.max_width", d.Pipeline.MaxWidth)
	v.SetDefault("pipeline.max_height", d.Pipeline.MaxHeight)
	v.SetDefault("pipeline.max_pixels", d.Pipeline.MaxPixels)
	v.SetDefault("pipeline.output_format", d.Pipeline.OutputFormat)
	v.SetDefault("pipeline.jpeg_quality", d.Pipeline.JPEGQuality)
	v.SetDefault("pipeline.color_threshold", d.Pipeline.ColorThreshold)
	v.SetDefault("pipeline.label_threshold", d.Pipeline.LabelThreshold)
	v.SetDefault("pipeline.edge_threshold", d.Pipeline.EdgeThreshold)
	v.SetDefault("pipeline.min_score", d.Pipeline.MinScore)
	v.SetDefault("pipeline.max_objects", d.Pipeline.MaxObjects)
	v.SetDefault("pipeline.flood_fill", d.Pipeline.FloodFill)
	v.SetDefault("pipeline.color_radius", d.Pipeline.ColorRadius)
	v.SetDefault("pipeline.label_radius", d.Pipeline.LabelRadius)
	v.SetDefault("pipeline.box_radius", d.Pipeline.BoxRadius)

	v.SetDefault("segmenter.endpoint", d.Segmenter.Endpoint)
	v.SetDefault("segmenter.timeout", d.Segmenter.Timeout)

	v.SetDefault("detector.endpoint", d.Detector.Endpoint)
	v.SetDefault("detector.timeout", d.Detector.Timeout)
	v.SetDefault("detector.max_boxes", d.Detector.MaxBoxes)
	v.SetDefault("detector.min_score", d.Detector.MinScore)

	v.SetDefault("removebg.endpoint", d.RemoveBG.Endpoint)
	v.SetDefault("removebg.api_key", d.RemoveBG.APIKey)
	v.SetDefault("removebg.timeout", d.RemoveBG.Timeout)

	v.SetDefault("bria.endpoint", d.Bria.Endpoint)
	v.SetDefault("bria.api_key", d.Bria.APIKey)
	v.SetDefault("bria.model", d.Bria.Model)
	v.SetDefault("bria.timeout", d.Bria.Timeout)
	v.SetDefault("bria.retry_attempts", d.Bria.RetryAttempts)
	v.SetDefault("bria.negative_prompt", d.Bria.NegativePrompt)
	v.SetDefault("bria.steps", d.Bria.Steps)
	v.SetDefault("bria.guidance_scale", d.Bria.GuidanceScale)
	v.SetDefault("bria.strength", d.Bria.Strength)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.ttl", d.Storage.TTL)
	v.SetDefault("storage.cleanup_spec", d.Storage.CleanupSpec)
	v.SetDefault("storage.s3_bucket", d.Storage.S3Bucket)
	v.SetDefault("storage.s3_region", d.Storage.S3Region)
	v.SetDefault("storage.s3_prefix", d.Storage.S3Prefix)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			WarnSize:     5 * 1024 * 1024,
			AllowedTypes: []string{"image/png", "image/jpeg", "image/jpg", "image/webp"},
		},
		Pipeline: PipelineConfig{
			MaxConcurrent:  3,
			QueueTimeout:   30 * time.Second,
			JobTimeout:     2 * time.Minute,
			MaxWidth:       2048,
			MaxHeight:      2048,
			MaxPixels:      40_000_000,
			OutputFormat:   "png",
			JPEGQuality:    90,
			ColorThreshold: 30,
			LabelThreshold: 0.7,
			EdgeThreshold:  50,
			MinScore:       0.4,
			MaxObjects:     3,
			FloodFill:      true,
			ColorRadius:    2,
			LabelRadius:    1,
			BoxRadius:      1,
		},
		Segmenter: SegmenterConfig{
			Endpoint: "",
			Timeout:  30 * time.Second,
		},
		Detector: DetectorConfig{
			Endpoint: "",
			Timeout:  30 * time.Second,
			MaxBoxes: 20,
			MinScore: 0.4,
		},
		RemoveBG: RemoveBGConfig{
			Endpoint: "https://api.remove.bg/v1.0/removebg",
			Timeout:  30 * time.Second,
		},
		Bria: BriaConfig{
			Endpoint:       "https://platform.bria.ai/api/v1/image/generate",
			Model:          "bria-2.3",
			Timeout:        30 * time.Second,
			RetryAttempts:  3,
			NegativePrompt: "blurry, low quality, distorted",
			Steps:          30,
			GuidanceScale:  7.5,
			Strength:       0.8,
		},
		Storage: StorageConfig{
			Driver:      "local",
			Dir:         "./temp-images",
			TTL:         time.Hour,
			CleanupSpec: "@every 10m",
			S3Region:    "eu-west-2",
			S3Prefix:    "cutouts/",
		},
	}
}

// Default 返回内置默认配置
func Default() *Config {
	return getDefaultConfig()
}
