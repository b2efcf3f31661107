package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	// Filesystem layout.
	LibrariesDirRootPath  string `koanf:"libraries_dir_root_path" validate:"required"`
	FileUploadDirRootPath string `koanf:"file_upload_dir_root_path" validate:"required"`
	CoversDirRootPath     string `koanf:"covers_dir_root_path" validate:"required"`
	ErrorsDirName         string `koanf:"errors_dir_name" default:"errors"`

	// Database.
	DatabaseFilePath          string        `koanf:"database_file_path" validate:"required"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`

	// Processing.
	WorkerProcesses     int     `koanf:"worker_processes" default:"1" validate:"min=1"`
	ReencodeMaxWidth    int     `koanf:"reencode_max_width" default:"1400" validate:"min=1"`
	ReencodeQuality     int     `koanf:"reencode_quality" default:"75" validate:"min=1,max=100"`
	ReencodeWorkerRatio float64 `koanf:"reencode_worker_ratio" default:"0.75" validate:"gt=0,lte=1"`
	OCRLanguage         string  `koanf:"ocr_language" default:"fra+eng"`
	IsbnPageCount       int     `koanf:"isbn_page_count" default:"3" validate:"min=1"`
}

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/comics.yaml"
)

// New loads the configuration from the optional YAML file named by CONFIG_FILE
// and then from environment variables, which take precedence.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	err := k.Load(env.Provider("", ".", strings.ToLower), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a valid configuration rooted in a fresh temp directory.
func NewForTest() *Config {
	root, err := os.MkdirTemp("", "comics-config-*")
	if err != nil {
		panic(err)
	}

	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.LibrariesDirRootPath = filepath.Join(root, "libs")
	cfg.FileUploadDirRootPath = filepath.Join(root, "uploads")
	cfg.CoversDirRootPath = filepath.Join(root, "covers")
	cfg.DatabaseFilePath = ":memory:"
	cfg.OCRLanguage = "eng"
	return cfg
}

func validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}

	missing := []string{}
	invalid := []string{}
	for _, fe := range verrs {
		key := toSnakeCase(fe.StructField())
		desc := fmt.Sprintf("%s (%s)", strings.ToUpper(key), key)
		if fe.Tag() == "required" {
			missing = append(missing, desc)
		} else {
			invalid = append(invalid, fmt.Sprintf("%s must satisfy %s=%s", desc, fe.Tag(), fe.Param()))
		}
	}

	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return errors.Errorf("invalid config: %s", strings.Join(invalid, ", "))
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
