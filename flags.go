// SUBGHZ - A decoder for sub-1GHz remote control protocols.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/bemasher/subghz/analyzer"
	"github.com/bemasher/subghz/csv"
	"github.com/bemasher/subghz/receiver"
)

var mode = pflag.StringP("mode", "m", "receive", "operating mode: receive, decode, analyze, encode or keystore")

var configFilename = pflag.StringP("config", "c", "", "yaml configuration file")

var inFilename = pflag.StringP("in", "i", "", "saved signal file read by decode and encode, keystore file read by keystore")
var outFilename = pflag.StringP("out", "o", "", "file written by encode and keystore, stdout if empty")

var rawFilename = pflag.String("raw", "", "also record every sample received to a RAW saved signal file")

var threshold = pflag.Float64("threshold", 0.05, "squared magnitude above which the carrier is considered on")

var timeLimit = pflag.Duration("duration", 0, "time to run for, 0 for infinite, ex. 1h5m10s")

var unique = pflag.Bool("unique", false, "suppress repeated frames from each remote")
var protocolFilter = make(receiver.ProtocolFilter)

var format = pflag.String("format", "plain", "decoded frame output format: plain, csv or json")

var keystoreFilename = pflag.String("keystore", "", "manufacturer keystore file")
var aesKey = pflag.String("aeskey", "", "hex encoded AES-256 key of encrypted keystores and tables")
var niceFlorSTable = pflag.String("niceflorstable", "", "Nice FloR-S rainbow table")
var cameAtomoTable = pflag.String("cameatomotable", "", "CAME Atomo rainbow table")
var encrypt = pflag.Bool("encrypt", false, "keystore mode: write the keystore encrypted with -aeskey")

var metricsAddr = pflag.String("metrics", "", "address to serve prometheus metrics on, ex. :9100")

var logLevel = pflag.String("loglevel", "info", "log level: debug, info, warn or error")

var version = pflag.Bool("version", false, "display build date and commit hash")

// Config is the optional yaml configuration file. Command line flags take
// precedence over it.
type Config struct {
	Keystore       string          `yaml:"keystore"`
	AESKey         string          `yaml:"aes_key"`
	NiceFlorSTable string          `yaml:"nice_flor_s_table"`
	CameAtomoTable string          `yaml:"came_atomo_table"`
	Metrics        string          `yaml:"metrics"`
	Analyzer       analyzer.Config `yaml:"analyzer"`
}

func DefaultConfig() Config {
	return Config{Analyzer: analyzer.DefaultConfig()}
}

// LoadConfig reads a yaml configuration, keeping defaults for omitted keys.
func LoadConfig(r io.Reader) (cfg Config, err error) {
	cfg = DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err = dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, errors.Wrap(err, "config")
	}
	return cfg, cfg.Analyzer.Validate()
}

func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config")
	}
	defer f.Close()

	return LoadConfig(f)
}

// Merge copies every flag the user gave into cfg.
func (cfg *Config) Merge(fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "keystore":
			cfg.Keystore = *keystoreFilename
		case "aeskey":
			cfg.AESKey = *aesKey
		case "niceflorstable":
			cfg.NiceFlorSTable = *niceFlorSTable
		case "cameatomotable":
			cfg.CameAtomoTable = *cameAtomoTable
		case "metrics":
			cfg.Metrics = *metricsAddr
		}
	})
}

// Key decodes the AES key, nil when none is configured.
func (cfg Config) Key() ([]byte, error) {
	if cfg.AESKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(cfg.AESKey)
	return key, errors.Wrap(err, "aes key")
}

func RegisterFlags() {
	pflag.VarP(protocolFilter, "protocol", "p", "display only frames of the protocols in a comma-separated list")

	// rtltcp registers its flags with the standard library.
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	subghzFlags := map[string]bool{
		"mode":           true,
		"config":         true,
		"in":             true,
		"out":            true,
		"raw":            true,
		"threshold":      true,
		"duration":       true,
		"unique":         true,
		"protocol":       true,
		"format":         true,
		"keystore":       true,
		"aeskey":         true,
		"niceflorstable": true,
		"cameatomotable": true,
		"encrypt":        true,
		"metrics":        true,
		"loglevel":       true,
		"version":        true,
	}

	printDefaults := func(validFlags map[string]bool, inclusion bool) {
		pflag.CommandLine.VisitAll(func(f *pflag.Flag) {
			if validFlags[f.Name] != inclusion {
				return
			}

			format := "  --%s=%s: %s\n"
			fmt.Fprintf(os.Stderr, format, f.Name, f.DefValue, f.Usage)
		})
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		printDefaults(subghzFlags, true)

		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "rtltcp specific:")
		printDefaults(subghzFlags, false)
	}
}

func EnvOverride(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		envName := "SUBGHZ_" + strings.ToUpper(f.Name)
		flagValue := os.Getenv(envName)
		if flagValue == "" {
			return
		}

		fields := logrus.Fields{"env": envName, "flag": f.Name, "value": flagValue}
		if err := fs.Set(f.Name, flagValue); err != nil {
			logrus.WithFields(fields).WithError(err).Warn("environment variable failed to override flag")
			return
		}
		logrus.WithFields(fields).Info("environment variable overrides flag")
	})
}

// JSON and csv encoders implement receiver.Encoder.
func NewEncoder(format string, w io.Writer) (receiver.Encoder, error) {
	switch strings.ToLower(format) {
	case "plain":
		return receiver.PlainEncoder{W: w}, nil
	case "csv":
		return csv.NewEncoder(w), nil
	case "json":
		return json.NewEncoder(w), nil
	}
	return nil, errors.Errorf("unknown format %q", format)
}
