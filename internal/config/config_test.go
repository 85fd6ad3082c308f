package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Search: SearchConfig{
			Driver:  DriverElasticsearch,
			Addrs:   []string{"http://localhost:9200"},
			Indexes: map[string]string{"default": "test"},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"unknown driver", func(c *Config) { c.Search.Driver = "solr" }, `search.driver must be "elasticsearch" or "memory", got "solr"`},
		{"missing addrs", func(c *Config) { c.Search.Addrs = nil }, "search.addrs is required"},
		{"missing default index", func(c *Config) { c.Search.Indexes = map[string]string{"book": "x"} }, "search.indexes.default"},
		{"negative retries", func(c *Config) { c.Search.MaxRetries = -1 }, "search.max_retries"},
		{"cache without addrs", func(c *Config) { c.Cache.Enabled = true }, "cache.addrs"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidate_MemoryDriverNeedsNoAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Search.Driver = DriverMemory
	cfg.Search.Addrs = nil
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DisabledNeedsNoAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Search.Disabled = true
	cfg.Search.Addrs = nil
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.HTTP.DefaultPageSize != 20 || cfg.HTTP.MaxPageSize != 100 {
		t.Errorf("expected page sizes 20/100, got %d/%d", cfg.HTTP.DefaultPageSize, cfg.HTTP.MaxPageSize)
	}
	if cfg.Search.Driver != DriverElasticsearch {
		t.Errorf("expected driver %q, got %q", DriverElasticsearch, cfg.Search.Driver)
	}
	if cfg.Search.IDField != "id" {
		t.Errorf("expected IDField=id, got %q", cfg.Search.IDField)
	}
	if cfg.Search.TimeoutSec != 5 {
		t.Errorf("expected TimeoutSec=5, got %d", cfg.Search.TimeoutSec)
	}
	if cfg.Cache.TTLSec != 60 {
		t.Errorf("expected TTLSec=60, got %d", cfg.Cache.TTLSec)
	}
	if cfg.Cache.KeyPrefix != "lazysearch:resp:" {
		t.Errorf("expected KeyPrefix='lazysearch:resp:', got %q", cfg.Cache.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Search: SearchConfig{Driver: DriverMemory, IDField: "pk", TimeoutSec: 2},
		Cache:  CacheConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Search.Driver != DriverMemory || cfg.Search.IDField != "pk" || cfg.Search.TimeoutSec != 2 {
		t.Errorf("search overridden: %+v", cfg.Search)
	}
	if cfg.Cache.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Cache.KeyPrefix)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("LAZYSEARCH_TEST_ES", "http://es:9200")
	data := []byte(`
http:
  port: 8080
search:
  addrs: ["${LAZYSEARCH_TEST_ES}"]
  indexes:
    default: ${LAZYSEARCH_TEST_INDEX:-test}
  query_fields:
    book: [title__text, author]
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Search.Addrs[0] != "http://es:9200" {
		t.Errorf("addrs = %v", cfg.Search.Addrs)
	}
	if cfg.Search.Indexes["default"] != "test" {
		t.Errorf("indexes = %v", cfg.Search.Indexes)
	}
	if got := cfg.Search.QueryFields["book"]; len(got) != 2 || got[0] != "title__text" {
		t.Errorf("query_fields = %v", cfg.Search.QueryFields)
	}
}
