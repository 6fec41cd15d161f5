package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "shutter.yaml"

type Trigger struct {
	Threshold float64       `yaml:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown"`
	// Armed enables the sound trigger at startup.
	Armed bool `yaml:"armed"`
}

type Audio struct {
	Device     string `yaml:"device"`
	SampleRate uint32 `yaml:"sample_rate"`
}

type Camera struct {
	Front []string `yaml:"front"`
	Back  []string `yaml:"back"`
	// Still is an image file used instead of a webcam.
	Still string `yaml:"still"`
}

type Booth struct {
	Out        string            `yaml:"out"`
	Guitars    map[string]string `yaml:"guitars"`
	Background string            `yaml:"background"`
	Width      int               `yaml:"width"`
	Height     int               `yaml:"height"`
}

type Root struct {
	Trigger Trigger `yaml:"trigger"`
	Audio   Audio   `yaml:"audio"`
	Camera  Camera  `yaml:"camera"`
	Booth   Booth   `yaml:"booth"`
	Serve   string  `yaml:"serve"`
	Sounds  bool    `yaml:"sounds"`
	Hotkey  bool    `yaml:"hotkey"`
}

func Default() *Root {
	return &Root{
		Trigger: Trigger{Threshold: 0.3, Cooldown: time.Second},
		Audio:   Audio{SampleRate: 48000},
		Booth:   Booth{Out: defaultOutDir(), Width: 640, Height: 480},
		Sounds:  true,
		Hotkey:  true,
	}
}

func defaultOutDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "photos"
	}
	return filepath.Join(home, "Pictures", "shutter")
}

// Candidates lists config paths in lookup order.
func Candidates(flagPath string) []string {
	if flagPath != "" {
		return []string{flagPath}
	}
	var guess []string
	if env := os.Getenv("SHUTTER_CONFIG"); env != "" {
		guess = append(guess, env)
	}
	guess = append(guess, FileName)
	if dir, err := os.UserConfigDir(); err == nil {
		guess = append(guess, filepath.Join(dir, "shutter", "config.yaml"))
	}
	return guess
}

// Load reads the first existing candidate over the defaults and returns the
// path it came from, or "" when no file exists. An explicit -config path
// that does not exist is an error.
func Load(flagPath string) (*Root, string, error) {
	cfg := Default()
	for _, p := range Candidates(flagPath) {
		f, err := os.Open(expandHome(p))
		if errors.Is(err, fs.ErrNotExist) && flagPath == "" {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, "", fmt.Errorf("%s: %w", p, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, "", fmt.Errorf("%s: %w", p, err)
		}
		cfg.expand()
		return cfg, p, nil
	}
	cfg.expand()
	return cfg, "", nil
}

func (c *Root) Validate() error {
	if c.Trigger.Threshold < 0 || c.Trigger.Threshold > 1 {
		return fmt.Errorf("trigger.threshold %v must be within [0, 1]", c.Trigger.Threshold)
	}
	if c.Trigger.Cooldown < 0 {
		return fmt.Errorf("trigger.cooldown %v must not be negative", c.Trigger.Cooldown)
	}
	if c.Booth.Width < 0 || c.Booth.Height < 0 {
		return fmt.Errorf("booth frame %dx%d is invalid", c.Booth.Width, c.Booth.Height)
	}
	return nil
}

func (c *Root) expand() {
	c.Booth.Out = expandHome(c.Booth.Out)
	c.Booth.Background = expandHome(c.Booth.Background)
	c.Camera.Still = expandHome(c.Camera.Still)
	for name, p := range c.Booth.Guitars {
		c.Booth.Guitars[name] = expandHome(p)
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
