// Package config provides configuration management for sitepipe using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the SITEPIPE_ prefix, defaults mirroring the conventional
// src/ ___Temp/ ___Build/ layout, and validation. The Paths section is the
// path configuration every stage reads; it is built once and shared by value.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Tools       ToolsConfig       `yaml:"tools" mapstructure:"tools"`
	Lint        LintConfig        `yaml:"lint" mapstructure:"lint"`
	Purge       PurgeConfig       `yaml:"purge" mapstructure:"purge"`
	Watch       WatchConfig       `yaml:"watch" mapstructure:"watch"`
	Development DevelopmentConfig `yaml:"development" mapstructure:"development"`
	Build       BuildConfig       `yaml:"build" mapstructure:"build"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// PathsConfig maps logical roles to filesystem locations.
type PathsConfig struct {
	Src        SrcPaths   `yaml:"src" mapstructure:"src"`
	Temp       TempPaths  `yaml:"temp" mapstructure:"temp"`
	Build      BuildPaths `yaml:"build" mapstructure:"build"`
	LintConfig string     `yaml:"lint_config" mapstructure:"lint_config"`
}

type SrcPaths struct {
	Markup    string `yaml:"markup" mapstructure:"markup"`
	Data      string `yaml:"data" mapstructure:"data"`
	Tailwind  string `yaml:"tailwind" mapstructure:"tailwind"`
	Sass      string `yaml:"sass" mapstructure:"sass"`
	SassEntry string `yaml:"sass_entry" mapstructure:"sass_entry"`
	Images    string `yaml:"images" mapstructure:"images"`
	Scripts   string `yaml:"scripts" mapstructure:"scripts"`
	Vendor    string `yaml:"vendor" mapstructure:"vendor"`
	Concat    string `yaml:"concat" mapstructure:"concat"`
}

type TempPaths struct {
	Root        string `yaml:"root" mapstructure:"root"`
	CSS         string `yaml:"css" mapstructure:"css"`
	CSSCompiled string `yaml:"css_compiled" mapstructure:"css_compiled"`
	JS          string `yaml:"js" mapstructure:"js"`
	Images      string `yaml:"images" mapstructure:"images"`
}

type BuildPaths struct {
	Root   string `yaml:"root" mapstructure:"root"`
	CSS    string `yaml:"css" mapstructure:"css"`
	JS     string `yaml:"js" mapstructure:"js"`
	Images string `yaml:"images" mapstructure:"images"`
}

type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// ToolsConfig holds the command lines of the external tools. The
// placeholders {in}, {out} and {config} are substituted per invocation;
// {in} may expand to several arguments.
type ToolsConfig struct {
	Sass     string `yaml:"sass" mapstructure:"sass"`
	Tailwind string `yaml:"tailwind" mapstructure:"tailwind"`
	Lint     string `yaml:"lint" mapstructure:"lint"`
}

type LintConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

type PurgeConfig struct {
	Safelist []string `yaml:"safelist" mapstructure:"safelist"`
}

type WatchConfig struct {
	// Debounce coalesces events per binding; zero runs once per event.
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type DevelopmentConfig struct {
	CSSInjection   bool `yaml:"css_injection" mapstructure:"css_injection"`
	InitialCompile bool `yaml:"initial_compile" mapstructure:"initial_compile"`
}

type BuildConfig struct {
	StateDir string `yaml:"state_dir" mapstructure:"state_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

var defaults = map[string]interface{}{
	"paths.src.markup":        "./src/markup",
	"paths.src.data":          "./src/data.yaml",
	"paths.src.tailwind":      "./src/tailwind.css",
	"paths.src.sass":          "./src/sass",
	"paths.src.sass_entry":    "style.sass",
	"paths.src.images":        "./src/img",
	"paths.src.scripts":       "./src/js",
	"paths.src.vendor":        "./src/js/vendors",
	"paths.src.concat":        "./src/js/concats",
	"paths.temp.root":         "./___Temp",
	"paths.temp.css":          "./___Temp/css",
	"paths.temp.css_compiled": "./___Temp/css/compiled",
	"paths.temp.js":           "./___Temp/js",
	"paths.temp.images":       "./___Temp/img",
	"paths.build.root":        "./___Build",
	"paths.build.css":         "./___Build/css",
	"paths.build.js":          "./___Build/js",
	"paths.build.images":      "./___Build/img",
	"paths.lint_config":       "./.eslintrc.json",

	"server.host": "localhost",
	"server.port": 3000,

	"tools.sass":     "sass --no-source-map {in} {out}",
	"tools.tailwind": "tailwindcss -i {in} -o {out}",
	"tools.lint":     "eslint --config {config} {in}",

	"lint.enabled":   true,
	"purge.safelist": []string{},
	"watch.debounce": "0s",

	"development.css_injection":   true,
	"development.initial_compile": true,

	"build.state_dir": ".sitepipe",

	"log.level":  "info",
	"log.format": "text",
}

// SetDefaults registers every default on v so environment overrides apply to
// keys that no config file mentions.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Load builds the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds and validates the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// viper leaves an explicitly empty list as nil
	if config.Purge.Safelist == nil {
		config.Purge.Safelist = []string{}
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "SITEPIPE"

func envKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// BindEnvironment enables SITEPIPE_<SECTION>_<KEY> overrides on v.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer())
	v.AutomaticEnv()
}
