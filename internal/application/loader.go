package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/ports"
)

// EnvFileVariable names a single .env file to load instead of the defaults.
const EnvFileVariable = "ENV_FILE"

var configValidator = validator.New()

// LoadConfig builds an AppConfig in four layers: defaults, the YAML file
// at path (skipped when path is empty), .env files, and finally the
// process environment through `env` struct tags. The result is validated
// before it is returned.
//
// .env files are loaded in priority order: the file named by ENV_FILE if
// set, otherwise .env.local and then .env. Missing files are ignored and
// variables already present in the environment are never overwritten.
func LoadConfig(path string) (*AppConfig, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	cfg := DefaultAppConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, ports.NewConfigError(path, fmt.Errorf("%w: %w", ports.ErrConfigNotFound, err))
		}
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := decodeYAML(bytes.NewReader(data), &cfg); err != nil {
			return nil, err
		}
	}

	return finishConfig(&cfg)
}

// LoadConfigFromReader is LoadConfig for an in-memory document. It does
// not read .env files.
func LoadConfigFromReader(r io.Reader) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	return finishConfig(&cfg)
}

func decodeYAML(r io.Reader, cfg *AppConfig) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func finishConfig(cfg *AppConfig) (*AppConfig, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if cfg.Inference.APIKey == "" {
		if name, ok := providerKeyEnv[cfg.Inference.Provider]; ok {
			cfg.Inference.APIKey = os.Getenv(name)
		}
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateConfig checks cfg against its validate tags and the registered
// recognition engines.
func ValidateConfig(cfg *AppConfig) error {
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	if !DefaultEngineRegistry().Has(cfg.OCR.Engine) {
		return fmt.Errorf("%w: unknown ocr engine %q", domain.ErrInvalidConfiguration, cfg.OCR.Engine)
	}
	return nil
}

// loadEnvFiles loads .env files. A missing file is not an error.
func loadEnvFiles() error {
	if envFile := os.Getenv(EnvFileVariable); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyEnvOverrides walks cfg and sets every field carrying an `env` tag
// whose variable is non-empty.
func applyEnvOverrides(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return applyEnvToStruct(v)
}

func applyEnvToStruct(v reflect.Value) error {
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if field.Kind() == reflect.Struct && envTag == "" {
			if err := applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}
		if envTag == "" {
			continue
		}

		envVal := os.Getenv(envTag)
		if envVal == "" {
			continue
		}
		if err := setFieldFromString(field, envVal); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, ports.NewConfigError(envTag, err))
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setFieldFromString(field reflect.Value, val string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(val)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(val, ",")
		out := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p))
			}
		}
		field.Set(out)

	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
