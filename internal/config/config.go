package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port      string  `toml:"port"`
	AuthToken string  `toml:"-"`
	Auditor   Auditor `toml:"auditor"`
	Cleanup   Cleanup `toml:"cleanup"`
}

type Auditor struct {
	// Runner selects how Lighthouse is executed: exec, docker or kubernetes.
	Runner        string        `toml:"runner"`
	NodeBin       string        `toml:"node_bin"`
	LighthouseBin string        `toml:"lighthouse_bin"`
	ChromeFlags   []string      `toml:"chrome_flags"`
	DockerImage   string        `toml:"docker_image"`
	KubeNamespace string        `toml:"kube_namespace"`
	MaxURLs       int           `toml:"max_urls"`
	Timeout       time.Duration `toml:"timeout"`
}

type Cleanup struct {
	MaxAge time.Duration `toml:"max_age"`
}

// Load reads the optional TOML file at path (skipped when empty or missing),
// applies environment overrides and fills in defaults. Environment wins over
// the file so container deployments can tweak a baked-in config.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	cfg.AuthToken = os.Getenv("AUTH_TOKEN")
	if v := os.Getenv("AUDIT_RUNNER"); v != "" {
		cfg.Auditor.Runner = v
	}
	if v := os.Getenv("NODE_BIN"); v != "" {
		cfg.Auditor.NodeBin = v
	}
	if v := os.Getenv("LIGHTHOUSE_BIN"); v != "" {
		cfg.Auditor.LighthouseBin = v
	}
	if v := os.Getenv("LIGHTHOUSE_IMAGE"); v != "" {
		cfg.Auditor.DockerImage = v
	}
	if v := os.Getenv("KUBE_NAMESPACE"); v != "" {
		cfg.Auditor.KubeNamespace = v
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Auditor.Runner == "" {
		cfg.Auditor.Runner = "exec"
	}
	if cfg.Auditor.NodeBin == "" {
		cfg.Auditor.NodeBin = "node"
	}
	if cfg.Auditor.LighthouseBin == "" {
		cfg.Auditor.LighthouseBin = "lighthouse"
	}
	if len(cfg.Auditor.ChromeFlags) == 0 {
		cfg.Auditor.ChromeFlags = []string{"--headless=new", "--no-sandbox"}
	}
	if cfg.Auditor.DockerImage == "" {
		cfg.Auditor.DockerImage = "ghcr.io/perfkit/lighthouse:12"
	}
	if cfg.Auditor.KubeNamespace == "" {
		cfg.Auditor.KubeNamespace = "default"
	}
	if cfg.Auditor.MaxURLs == 0 {
		cfg.Auditor.MaxURLs = 10
	}
	if cfg.Auditor.Timeout == 0 {
		cfg.Auditor.Timeout = 5 * time.Minute
	}
	if cfg.Cleanup.MaxAge == 0 {
		cfg.Cleanup.MaxAge = 5 * time.Minute
	}

	return &cfg, nil
}
