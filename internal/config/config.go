// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads cyclestat run configuration from YAML and
// merges it with command-line flags.
//
// A configuration file looks like
//
//	grammar: v2
//	match: first
//	naming: any
//	demangle: false
//	client_functions: [mbedtls_ssl_handshake]
//	server_functions: [mbedtls_ssl_handshake, mbedtls_ssl_write]
//	db:
//	  driver: sqlite3
//	  dsn: samples.db
//	benchfmt: samples.txt
//	gcs_credentials: key.json
//
// Flags given explicitly on the command line take precedence over the
// file.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/tlsbench/cyclestat/callgrind"
	"github.com/tlsbench/cyclestat/locate"
	"github.com/tlsbench/cyclestat/portable"
)

// Config is a run configuration.
type Config struct {
	Grammar  string `yaml:"grammar"`
	Match    string `yaml:"match"`
	Naming   string `yaml:"naming"`
	Demangle bool   `yaml:"demangle"`

	ClientFunctions []string `yaml:"client_functions"`
	ServerFunctions []string `yaml:"server_functions"`

	// Alg restricts collection to ciphersuites whose name contains
	// this algorithm token.
	Alg string `yaml:"alg"`

	DB DB `yaml:"db"`

	// Benchfmt, if set, is a destination for the raw samples in Go
	// benchmark format.
	Benchfmt string `yaml:"benchfmt"`

	// GCSCredentials is a service account key file for gs://
	// destinations.
	GCSCredentials string `yaml:"gcs_credentials"`
}

// DB configures the optional sample archive. It is disabled if Driver
// is empty.
type DB struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Grammar: callgrind.GrammarLine.String(),
		Match:   callgrind.FirstMatch.String(),
		Naming:  locate.Current.String(),
	}
}

// Load reads the configuration file at path. Settings missing from the
// file keep their defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse parses YAML configuration data. name is used in errors.
func Parse(data []byte, name string) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

// Validate reports whether c's enumerated settings are well formed.
func (c *Config) Validate() error {
	if _, err := c.Extractor(); err != nil {
		return err
	}
	if _, err := c.Conventions(); err != nil {
		return err
	}
	if c.DB.Driver != "" && c.DB.DSN == "" {
		return fmt.Errorf("db driver %s given without a dsn", c.DB.Driver)
	}
	if err := CheckFunctions(c.ClientFunctions); err != nil {
		return err
	}
	return CheckFunctions(c.ServerFunctions)
}

// CheckFunctions rejects function names that cannot key a result
// table, such as "42", which would read back as a number.
func CheckFunctions(funcs []string) error {
	for _, fn := range funcs {
		if err := portable.CheckStr(fn); err != nil {
			return fmt.Errorf("function %q: %w", fn, err)
		}
	}
	return nil
}

// Extractor returns the callgrind extractor described by c.
func (c *Config) Extractor() (*callgrind.Extractor, error) {
	g, err := callgrind.ParseGrammar(c.Grammar)
	if err != nil {
		return nil, err
	}
	m, err := callgrind.ParseMatchMode(c.Match)
	if err != nil {
		return nil, err
	}
	return &callgrind.Extractor{Grammar: g, Match: m, Demangle: c.Demangle}, nil
}

// Conventions returns the file naming conventions described by c.
func (c *Config) Conventions() ([]locate.Convention, error) {
	return locate.ParseConventions(c.Naming)
}

// Functions returns the functions to collect for role.
func (c *Config) Functions(role locate.Role) []string {
	if role == locate.Server {
		return c.ServerFunctions
	}
	return c.ClientFunctions
}

// ApplyFlags overrides settings in c with every flag in fs that was set
// on the command line. Flags that are not defined in fs are ignored.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	setString := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	setStrings := func(name string, dst *[]string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetStringSlice(name)
		}
	}
	setString("grammar", &c.Grammar)
	setString("match", &c.Match)
	setString("naming", &c.Naming)
	setString("alg", &c.Alg)
	setString("db-driver", &c.DB.Driver)
	setString("db-dsn", &c.DB.DSN)
	setString("benchfmt", &c.Benchfmt)
	setString("gcs-credentials", &c.GCSCredentials)
	setStrings("cf", &c.ClientFunctions)
	setStrings("sf", &c.ServerFunctions)
	if err == nil && fs.Changed("demangle") {
		c.Demangle, err = fs.GetBool("demangle")
	}
	if err != nil {
		return err
	}
	return c.Validate()
}
