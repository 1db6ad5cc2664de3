package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/transitlens-data/internal/common/errs"
)

// Provider type tags. Anything else is rejected at load time.
const (
	StaticProviderType   = "gtfs_static_zip"
	RealtimeProviderType = "gtfs_realtime"
)

// ProviderFile is the root of providers.yaml.
type ProviderFile struct {
	Provider Provider `yaml:"provider" validate:"required"`
	Paths    Paths    `yaml:"paths"`
}

type Provider struct {
	Static   StaticProvider   `yaml:"static"`
	Realtime RealtimeProvider `yaml:"realtime"`
}

type StaticProvider struct {
	Type      string        `yaml:"type" validate:"required"`
	URL       string        `yaml:"url" validate:"omitempty,url"`
	OutDir    string        `yaml:"out_dir"`
	Filename  string        `yaml:"filename"`
	TimeoutS  int           `yaml:"timeout_s" validate:"gte=0"`
	VerifyTLS *bool         `yaml:"verify_tls"`
	Extract   ExtractConfig `yaml:"extract"`
}

type ExtractConfig struct {
	Files       []string `yaml:"files"`
	CleanOutDir *bool    `yaml:"clean_out_dir"`
}

type RealtimeProvider struct {
	Type      string     `yaml:"type" validate:"required"`
	Endpoints []Endpoint `yaml:"endpoints" validate:"dive"`
	OutDir    string     `yaml:"out_dir"`
	TimeoutS  int        `yaml:"timeout_s" validate:"gte=0"`
	VerifyTLS *bool      `yaml:"verify_tls"`
	Auth      AuthConfig `yaml:"auth"`
}

type Endpoint struct {
	Name     string `yaml:"name" validate:"required"`
	URL      string `yaml:"url" validate:"required,url"`
	Format   string `yaml:"format"`   // protobuf (default) or json
	Filename string `yaml:"filename"` // defaults to <name>.pb / <name>.json
}

// OutputFilename returns the snapshot member filename for this endpoint.
func (e Endpoint) OutputFilename() string {
	if e.Filename != "" {
		return e.Filename
	}
	if strings.EqualFold(e.Format, "json") {
		return e.Name + ".json"
	}
	return e.Name + ".pb"
}

type AuthConfig struct {
	Mode       string `yaml:"mode"` // none | header | query
	EnvVar     string `yaml:"env_var"`
	HeaderName string `yaml:"header_name"`
	QueryParam string `yaml:"query_param"`
}

type Paths struct {
	ArtifactsDir string `yaml:"artifacts_dir"`
}

// LoadProviders reads and validates providers.yaml. Unknown provider type
// tags and structurally invalid definitions are ConfigErrors.
func LoadProviders(path string) (*ProviderFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Configf("reading providers file %s: %v", path, err)
	}

	var pf ProviderFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, errs.Configf("parsing providers file %s: %v", path, err)
	}

	v := validator.New()
	if err := v.Struct(pf); err != nil {
		return nil, errs.Configf("invalid providers file %s: %v", path, err)
	}

	if pf.Provider.Static.Type != "" && pf.Provider.Static.Type != StaticProviderType {
		return nil, errs.Configf("unsupported provider.static.type: %s", pf.Provider.Static.Type)
	}
	if pf.Provider.Realtime.Type != "" && pf.Provider.Realtime.Type != RealtimeProviderType {
		return nil, errs.Configf("unsupported provider.realtime.type: %s", pf.Provider.Realtime.Type)
	}

	applyProviderDefaults(&pf)
	return &pf, nil
}

func applyProviderDefaults(pf *ProviderFile) {
	s := &pf.Provider.Static
	if s.OutDir == "" {
		s.OutDir = "dataset/static"
	}
	if s.Filename == "" {
		s.Filename = "gtfs_static.zip"
	}
	if s.TimeoutS == 0 {
		s.TimeoutS = 60
	}

	r := &pf.Provider.Realtime
	if r.OutDir == "" {
		r.OutDir = "dataset/realtime"
	}
	if r.TimeoutS == 0 {
		r.TimeoutS = 60
	}
	if r.Auth.Mode == "" {
		r.Auth.Mode = "none"
	}

	if pf.Paths.ArtifactsDir == "" {
		pf.Paths.ArtifactsDir = "dataset/artifacts"
	}
}

// VerifyTLSOrDefault treats an absent verify_tls as true.
func VerifyTLSOrDefault(v *bool) bool {
	return v == nil || *v
}

// BuildAuth resolves the auth config into request headers and query
// parameters. The secret is sourced from the configured environment
// variable; a non-none mode without a key is a ConfigError.
func (a AuthConfig) BuildAuth() (map[string]string, map[string]string, error) {
	headers := map[string]string{}
	params := map[string]string{}

	mode := strings.ToLower(a.Mode)
	if mode == "" || mode == "none" {
		return headers, params, nil
	}

	var key string
	if a.EnvVar != "" {
		key = os.Getenv(a.EnvVar)
	}
	if key == "" {
		return nil, nil, errs.Configf(
			"auth mode is %q but no API key found; set env var %q or use mode none",
			mode, a.EnvVar)
	}

	switch mode {
	case "header":
		name := a.HeaderName
		if name == "" {
			name = "x-api-key"
		}
		headers[name] = key
	case "query":
		param := a.QueryParam
		if param == "" {
			param = "api_key"
		}
		params[param] = key
	default:
		return nil, nil, errs.Configf("unsupported auth mode: %s", mode)
	}

	return headers, params, nil
}
