// Package config loads the edb command configuration from defaults, an
// optional YAML file and EDB_* environment variables, in that order.
package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Medium kinds.
const (
	MediumFile  = "file"
	MediumMongo = "mongo"
)

type Config struct {
	Store struct {
		Salt       string `yaml:"salt"`
		Prefix     string `yaml:"prefix"`
		Iterations int    `yaml:"iterations"`
	} `yaml:"store"`
	Medium struct {
		Kind  string `yaml:"kind"`
		File  string `yaml:"file"`
		Mongo struct {
			URI        string `yaml:"uri"`
			Database   string `yaml:"database"`
			Collection string `yaml:"collection"`
		} `yaml:"mongo"`
	} `yaml:"medium"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Metrics struct {
		// Textfile receives the medium metrics in the Prometheus text format
		// when the command exits. Empty disables metrics.
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

func defaultConfig() Config {
	var c Config
	c.Store.Prefix = "@edb"
	c.Store.Iterations = 100000
	c.Medium.Kind = MediumFile
	c.Medium.File = "edb.db"
	c.Medium.Mongo.Database = "edb"
	c.Medium.Mongo.Collection = "records"
	c.Logging.Level = "warn"
	c.Logging.Pretty = true
	return c
}

// Load returns the configuration. The YAML file named by EDB_CONFIG, or path
// when not empty, is applied over the defaults, then environment overrides.
func Load(path string) (Config, error) {
	c := defaultConfig()
	if path == "" {
		path = os.Getenv("EDB_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, errors.Wrap(err, "cannot read config file")
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, errors.Wrapf(err, "cannot parse config file %q", path)
		}
	}
	if v := os.Getenv("EDB_SALT"); v != "" {
		c.Store.Salt = v
	}
	if v := os.Getenv("EDB_PREFIX"); v != "" {
		c.Store.Prefix = v
	}
	if v := os.Getenv("EDB_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, errors.Wrap(err, "invalid EDB_ITERATIONS")
		}
		c.Store.Iterations = n
	}
	if v := os.Getenv("EDB_MEDIUM"); v != "" {
		c.Medium.Kind = v
	}
	if v := os.Getenv("EDB_FILE"); v != "" {
		c.Medium.File = v
	}
	if v := os.Getenv("EDB_MONGO_URI"); v != "" {
		c.Medium.Mongo.URI = v
	}
	if v := os.Getenv("EDB_MONGO_DB"); v != "" {
		c.Medium.Mongo.Database = v
	}
	if v := os.Getenv("EDB_MONGO_COLLECTION"); v != "" {
		c.Medium.Mongo.Collection = v
	}
	if v := os.Getenv("EDB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EDB_METRICS_TEXTFILE"); v != "" {
		c.Metrics.Textfile = v
	}
	return c, c.validate()
}

func (c Config) validate() error {
	if c.Store.Salt == "" {
		return errors.New("store salt is required (store.salt or EDB_SALT)")
	}
	switch c.Medium.Kind {
	case MediumFile:
		if c.Medium.File == "" {
			return errors.New("medium.file is required for the file medium")
		}
	case MediumMongo:
		if c.Medium.Mongo.URI == "" {
			return errors.New("medium.mongo.uri is required for the mongo medium")
		}
	default:
		return errors.Errorf("unknown medium kind %q", c.Medium.Kind)
	}
	return nil
}
