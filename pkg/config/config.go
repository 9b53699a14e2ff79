package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nspcc-dev/jserial/pkg/httpmsg"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the default path to the config file.
const DefaultConfigPath = "./config/jserial.yml"

// Version is the version of the tool, set at build time.
var Version string

// Config top level struct representing the config of the tool.
type Config struct {
	Rewriter    Rewriter                 `yaml:"Rewriter"`
	Application ApplicationConfiguration `yaml:"Application"`
}

// Rewriter configures message qualification and marking.
type Rewriter struct {
	// MarkerHeader is the "Name: value" header line which marks messages
	// holding the editable form of their body.
	MarkerHeader string `yaml:"MarkerHeader"`
	// RequestMethods are methods of requests whose bodies are decoded.
	RequestMethods []string `yaml:"RequestMethods"`
	// MediaTypes are Content-Type media types of responses whose bodies
	// are decoded.
	MediaTypes []string `yaml:"MediaTypes"`
	// DumpPayloads enables hex dumps of bodies in debug logs.
	DumpPayloads bool `yaml:"DumpPayloads"`
}

// Default values.
const (
	DefaultMarkerHeader = "X-Burp: Decoded"
)

var (
	// DefaultRequestMethods are the body-bearing methods.
	DefaultRequestMethods = []string{"POST", "PUT", "PATCH"}
	// DefaultMediaTypes are serialized object media types.
	DefaultMediaTypes = []string{"application/x-java-serialized-object", "application/octet-stream"}
)

// Default returns configuration with all defaults set.
func Default() Config {
	return Config{
		Rewriter: Rewriter{
			MarkerHeader:   DefaultMarkerHeader,
			RequestMethods: DefaultRequestMethods,
			MediaTypes:     DefaultMediaTypes,
		},
		Application: ApplicationConfiguration{
			LogLevel: "info",
		},
	}
}

// LoadFile loads config from the provided path, values missing from the file
// keep their defaults.
func LoadFile(configPath string) (Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate checks settings consistency.
func (c Config) Validate() error {
	if _, err := c.Rewriter.Marker(); err != nil {
		return fmt.Errorf("MarkerHeader: %w", err)
	}
	if len(c.Rewriter.RequestMethods) == 0 && len(c.Rewriter.MediaTypes) == 0 {
		return errors.New("neither RequestMethods nor MediaTypes are set, nothing can be decoded")
	}
	return nil
}

// Marker returns the parsed marker header.
func (r Rewriter) Marker() (httpmsg.Header, error) {
	return httpmsg.ParseHeader(r.MarkerHeader)
}
