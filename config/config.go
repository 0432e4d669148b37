package config

import (
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"remoteup/protocols"
)

type Config struct {
	LogLevel string   `toml:"log_level"`
	Remotes  []Remote `toml:"remotes"`
	Jobs     []Job    `toml:"jobs"`
}

// Remote describes one server and the prefix every path on it is resolved under.
type Remote struct {
	Name               string `toml:"name"`
	Protocol           string `toml:"protocol"` // ftp, ftps, sftp
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	User               string `toml:"user"`
	Password           string `toml:"password"`
	PrivateKeyFile     string `toml:"private_key_file"`
	Passphrase         string `toml:"passphrase"`
	KnownHostsFile     string `toml:"known_hosts_file"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	DisableEPSV        bool   `toml:"disable_epsv"`
	Prefix             string `toml:"prefix"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
}

// Job uploads LocalPath to RemotePath on a cron schedule.
type Job struct {
	Name       string `toml:"name"`
	Cron       string `toml:"cron"`
	Remote     string `toml:"remote"`
	LocalPath  string `toml:"local_path"`
	RemotePath string `toml:"remote_path"`
	Clean      bool   `toml:"clean"`  // delete remote_path before uploading
	Marker     string `toml:"marker"` // file written next to remote_path once the upload finished
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for i := range c.Remotes {
		r := &c.Remotes[i]
		r.Protocol = strings.ToLower(strings.TrimSpace(r.Protocol))
		if r.Port == 0 {
			switch r.Protocol {
			case "sftp":
				r.Port = 22
			case "ftp", "ftps":
				r.Port = 21
			}
		}
		if r.TimeoutSeconds == 0 {
			r.TimeoutSeconds = 30
		}
	}
}

func (c *Config) Validate() error {
	remotes := map[string]bool{}
	for _, r := range c.Remotes {
		if r.Name == "" {
			return errors.New("remote without a name")
		}
		if remotes[r.Name] {
			return errors.Errorf("duplicate remote %q", r.Name)
		}
		remotes[r.Name] = true
		if !knownProtocol(r.Protocol) {
			return errors.Wrapf(protocols.ErrNotImplemented, "remote %q: protocol %q", r.Name, r.Protocol)
		}
		if r.Host == "" {
			return errors.Errorf("remote %q: host is required", r.Name)
		}
	}

	jobs := map[string]bool{}
	for _, j := range c.Jobs {
		if j.Name == "" {
			return errors.New("job without a name")
		}
		if jobs[j.Name] {
			return errors.Errorf("duplicate job %q", j.Name)
		}
		jobs[j.Name] = true
		if j.Cron == "" {
			return errors.Errorf("job %q: cron is required", j.Name)
		}
		if !remotes[j.Remote] {
			return errors.Errorf("job %q: unknown remote %q", j.Name, j.Remote)
		}
		if j.LocalPath == "" || j.RemotePath == "" {
			return errors.Errorf("job %q: local_path and remote_path are required", j.Name)
		}
	}
	return nil
}

func knownProtocol(p string) bool {
	for _, known := range protocols.Protocols {
		if p == known {
			return true
		}
	}
	return false
}

// Remote returns the remote called name.
func (c *Config) Remote(name string) (Remote, bool) {
	for _, r := range c.Remotes {
		if r.Name == name {
			return r, true
		}
	}
	return Remote{}, false
}

func (r Remote) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Options converts r into adapter options, reading the private key file if one is set.
func (r Remote) Options() (protocols.Options, error) {
	opts := protocols.Options{
		Host:               r.Host,
		Port:               r.Port,
		User:               r.User,
		Password:           r.Password,
		Passphrase:         r.Passphrase,
		KnownHostsFile:     r.KnownHostsFile,
		InsecureSkipVerify: r.InsecureSkipVerify,
		DisableEPSV:        r.DisableEPSV,
		Timeout:            r.Timeout(),
	}
	if r.PrivateKeyFile != "" {
		key, err := os.ReadFile(r.PrivateKeyFile)
		if err != nil {
			return opts, errors.Wrapf(err, "remote %q: read private key", r.Name)
		}
		opts.PrivateKey = key
	}
	return opts, nil
}
