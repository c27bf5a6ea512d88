package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// HTTPToolConfig is a manifest describing one statically-configured
// HTTP-backed tool, in a K8s-style manifest shape
// (apiVersion/kind/metadata/spec). This is additive to, not a replacement
// for, in-process Go-handler registration: it lets a deployment add a
// simple "call this URL" tool (e.g. a weather lookup) without writing Go.
type HTTPToolConfig struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       HTTPToolSpec      `yaml:"spec"`
}

// HTTPToolSpec is the tool-specific payload of an HTTPToolConfig.
type HTTPToolSpec struct {
	Description string  `yaml:"description"`
	Method      string  `yaml:"method"`
	URL         string  `yaml:"url"`
	Params      []Param `yaml:"params"`
	TimeoutMs   int     `yaml:"timeout_ms"`
}

// LoadHTTPToolConfig parses an HTTPToolConfig manifest from path.
func LoadHTTPToolConfig(path string) (HTTPToolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return HTTPToolConfig{}, err
	}
	var cfg HTTPToolConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return HTTPToolConfig{}, err
	}
	if cfg.Kind != "Tool" {
		return HTTPToolConfig{}, fmt.Errorf("httptool: unexpected kind %q, want %q", cfg.Kind, "Tool")
	}
	return cfg, nil
}

// Descriptor builds a Registry Descriptor whose Handler issues an HTTP
// request to the manifest's URL with the model-supplied arguments encoded as
// a JSON request body. No SpecialToolParameters are required:
// an HTTP tool needs no injected runtime capabilities.
func (c HTTPToolConfig) Descriptor() Descriptor {
	timeout := time.Duration(c.Spec.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return Descriptor{
		Name:        c.Metadata.Name,
		Description: c.Spec.Description,
		Params:      c.Spec.Params,
		Handler: func(args map[string]any, _ SpecialToolParameters) (any, error) {
			return callHTTPTool(client, c.Spec, args)
		},
	}
}

func callHTTPTool(client *http.Client, spec HTTPToolSpec, args map[string]any) (any, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("httptool: encoding arguments: %w", err)
	}

	req, err := http.NewRequest(method, spec.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httptool: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httptool: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("httptool: reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("httptool: remote returned %d: %s", resp.StatusCode, string(respBody))
	}
	return string(respBody), nil
}
