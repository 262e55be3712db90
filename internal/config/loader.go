package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/joho/godotenv"
	"github.com/omeid/uconfig/flat"
)

const (
	TagEnv  = "env"
	TagFlag = "flag"
	TagDesc = "desc"
)

var (
	ErrEnvFile          = errors.New("cannot read env file")
	ErrEnvValue         = errors.New("invalid env value")
	ErrFlagParse        = errors.New("cannot parse flag")
	ErrConfigInvalid    = errors.New("invalid config struct")
	ErrConfigValidation = errors.New("config validation error")
)

// DefaultEnvFiles are read in order, a variable set by an earlier file or by the
// process environment is never overwritten
var DefaultEnvFiles = []string{".env.local", ".env"}

type ConfigInterface interface {
	SetDefaults()
}

// LoadEnvFiles loads variables from the files that exist, missing files are skipped
func LoadEnvFiles(files ...string) error {
	for _, file := range files {
		err := godotenv.Load(file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return lib.WrapError(ErrEnvFile, err)
		}
	}
	return nil
}

// LoadConfig fills cfg from env then flags, applies defaults and validates the result
func LoadConfig(cfg ConfigInterface, osArgs *[]string) error {
	fields, err := flat.View(cfg)
	if err != nil {
		return lib.WrapError(ErrConfigInvalid, err)
	}

	flagset := flag.NewFlagSet("", flag.ContinueOnError)

	for _, field := range fields {
		envName, ok := field.Tag(TagEnv)
		if !ok {
			continue
		}

		if envValue, ok := os.LookupEnv(envName); ok && envValue != "" {
			if err := field.Set(envValue); err != nil {
				return lib.WrapError(ErrEnvValue, fmt.Errorf("%s: %w", envName, err))
			}
		}

		flagName, ok := field.Tag(TagFlag)
		if !ok {
			continue
		}

		flagDesc, _ := field.Tag(TagDesc)

		flagset.Var(field, flagName, flagDesc)
	}

	args := os.Args
	if osArgs != nil {
		args = *osArgs
	}
	if len(args) > 0 {
		args = args[1:]
	}

	// flags override env
	err = flagset.Parse(args)
	if err != nil {
		return lib.WrapError(ErrFlagParse, err)
	}

	cfg.SetDefaults()

	err = validator.New().Struct(cfg)
	if err != nil {
		return lib.WrapError(ErrConfigValidation, err)
	}

	return nil
}
