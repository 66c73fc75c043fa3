package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extension() string
}

// Loader picks a FileLoader by file extension.
type Loader struct {
	fileLoaders map[string]FileLoader
}

// NewLoader creates a loader that understands YAML, JSON and TOML.
func NewLoader() *Loader {
	l := &Loader{fileLoaders: make(map[string]FileLoader)}
	l.RegisterLoader(&YAMLLoader{})
	l.RegisterLoader(&JSONLoader{})
	l.RegisterLoader(&TOMLLoader{})
	return l
}

// RegisterLoader registers a new file loader for a specific format.
func (l *Loader) RegisterLoader(loader FileLoader) {
	l.fileLoaders[loader.Extension()] = loader
}

// LoadFile decodes path into target, overlaying whatever target already holds.
func (l *Loader) LoadFile(path string, target interface{}) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "yml" {
		ext = "yaml"
	}
	loader, ok := l.fileLoaders[ext]
	if !ok {
		return fmt.Errorf("unsupported config format %q", ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := loader.Load(file, target); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	err := yaml.NewDecoder(reader).Decode(target)
	if err == io.EOF {
		return nil
	}
	return err
}

func (y *YAMLLoader) Extension() string {
	return "yaml"
}

// JSONLoader loads configuration from JSON files.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	return json.NewDecoder(reader).Decode(target)
}

func (j *JSONLoader) Extension() string {
	return "json"
}

// TOMLLoader loads configuration from TOML files.
type TOMLLoader struct{}

func (t *TOMLLoader) Load(reader io.Reader, target interface{}) error {
	_, err := toml.NewDecoder(reader).Decode(target)
	return err
}

func (t *TOMLLoader) Extension() string {
	return "toml"
}
