package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/fairloan-cli/internal/logging"
	"github.com/KaramelBytes/fairloan-cli/internal/utils"
)

// DirName is the per-user directory under $HOME.
const DirName = ".fairloan"

// Global configuration structure.
type Global struct {
	BundleRoot string `mapstructure:"bundle_root" yaml:"bundle_root"`

	// Training defaults
	BiasThreshold   float64 `mapstructure:"bias_threshold" yaml:"bias_threshold"`
	TestFraction    float64 `mapstructure:"test_fraction" yaml:"test_fraction"`
	RandomSeed      int64   `mapstructure:"random_seed" yaml:"random_seed"`
	TreeMaxDepth    int     `mapstructure:"tree_max_depth" yaml:"tree_max_depth"`
	LogisticMaxIter int     `mapstructure:"logistic_max_iter" yaml:"logistic_max_iter"`
	LogisticC       float64 `mapstructure:"logistic_c" yaml:"logistic_c"`
	Oversample      bool    `mapstructure:"oversample" yaml:"oversample"`
	ClipOutliers    bool    `mapstructure:"clip_outliers" yaml:"clip_outliers"`

	// HTTP adapter
	ListenAddr  string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	MaxUploadMB int      `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Dir returns ~/.fairloan.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.fairloan/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bundle_root", "")
	v.SetDefault("bias_threshold", 0.15)
	v.SetDefault("test_fraction", 0.2)
	v.SetDefault("random_seed", 42)
	v.SetDefault("tree_max_depth", 3)
	v.SetDefault("logistic_max_iter", 100)
	v.SetDefault("logistic_c", 1.0)
	v.SetDefault("oversample", false)
	v.SetDefault("clip_outliers", false)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Default returns the built-in defaults without reading files or env.
func Default() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("FAIRLOAN")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve bundle_root default: ~/.fairloan/models
	if c.BundleRoot == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.BundleRoot = filepath.Join(dir, "models")
	}
	root, err := utils.ExpandHome(c.BundleRoot)
	if err != nil {
		return nil, err
	}
	c.BundleRoot = root
	return &c, nil
}

// Keys lists the settable configuration keys in display order.
func Keys() []string {
	return []string{
		"bundle_root", "bias_threshold", "test_fraction", "random_seed", "tree_max_depth",
		"logistic_max_iter", "logistic_c", "oversample", "clip_outliers",
		"listen_addr", "cors_origins", "max_upload_mb", "log_level", "log_format",
	}
}

// Get renders one key for display.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "bundle_root":
		return c.BundleRoot, nil
	case "bias_threshold":
		return cast.ToString(c.BiasThreshold), nil
	case "test_fraction":
		return cast.ToString(c.TestFraction), nil
	case "random_seed":
		return cast.ToString(c.RandomSeed), nil
	case "tree_max_depth":
		return cast.ToString(c.TreeMaxDepth), nil
	case "logistic_max_iter":
		return cast.ToString(c.LogisticMaxIter), nil
	case "logistic_c":
		return cast.ToString(c.LogisticC), nil
	case "oversample":
		return cast.ToString(c.Oversample), nil
	case "clip_outliers":
		return cast.ToString(c.ClipOutliers), nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "cors_origins":
		return strings.Join(c.CORSOrigins, ","), nil
	case "max_upload_mb":
		return cast.ToString(c.MaxUploadMB), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Set validates and assigns one key.
func (c *Global) Set(key, val string) error {
	val = strings.TrimSpace(val)
	switch key {
	case "bundle_root":
		if val == "" {
			return fmt.Errorf("bundle_root cannot be empty")
		}
		c.BundleRoot = val
	case "bias_threshold":
		f, err := cast.ToFloat64E(val)
		if err != nil || f <= 0 || f >= 1 {
			return fmt.Errorf("invalid float for bias_threshold: %v (must be in (0,1))", val)
		}
		c.BiasThreshold = f
	case "test_fraction":
		f, err := cast.ToFloat64E(val)
		if err != nil || f <= 0 || f >= 1 {
			return fmt.Errorf("invalid float for test_fraction: %v (must be in (0,1))", val)
		}
		c.TestFraction = f
	case "random_seed":
		i, err := cast.ToInt64E(val)
		if err != nil {
			return fmt.Errorf("invalid int for random_seed: %v", val)
		}
		c.RandomSeed = i
	case "tree_max_depth":
		i, err := cast.ToIntE(val)
		if err != nil || i < 3 || i > 5 {
			return fmt.Errorf("invalid int for tree_max_depth: %v (use 3-5)", val)
		}
		c.TreeMaxDepth = i
	case "logistic_max_iter":
		i, err := cast.ToIntE(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid int for logistic_max_iter: %v", val)
		}
		c.LogisticMaxIter = i
	case "logistic_c":
		f, err := cast.ToFloat64E(val)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid float for logistic_c: %v", val)
		}
		c.LogisticC = f
	case "oversample", "clip_outliers":
		b, err := cast.ToBoolE(val)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		if key == "oversample" {
			c.Oversample = b
		} else {
			c.ClipOutliers = b
		}
	case "listen_addr":
		if !strings.Contains(val, ":") {
			return fmt.Errorf("invalid listen_addr: %s (use host:port or :port)", val)
		}
		c.ListenAddr = val
	case "cors_origins":
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	case "max_upload_mb":
		i, err := cast.ToIntE(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid int for max_upload_mb: %v", val)
		}
		c.MaxUploadMB = i
	case "log_level":
		if _, err := logging.ParseLevel(val); err != nil {
			return err
		}
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		if !logging.ValidFormat(val) {
			return fmt.Errorf("invalid log_format: %s (use text or json)", val)
		}
		c.LogFormat = strings.ToLower(val)
	default:
		known := Keys()
		sort.Strings(known)
		return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(known, ", "))
	}
	return nil
}
