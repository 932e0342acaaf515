package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Provider supplies the persona description injected into every oracle
// call. An empty identity disables diary generation for that
// conversation until one is supplied.
type Provider interface {
	Identity(conversation, chatType string) (string, error)
}

type persona struct {
	Name     string `yaml:"name"`
	Core     string `yaml:"core"`
	Side     string `yaml:"side"`
	Identity string `yaml:"identity"`
	Style    string `yaml:"style"`
}

// FileProvider reads a persona YAML file once and serves the rendered
// description for every conversation.
type FileProvider struct {
	path string

	once   sync.Once
	text   string
	loaded error
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) Identity(conversation, chatType string) (string, error) {
	p.once.Do(func() {
		p.text, p.loaded = loadPersona(p.path)
	})
	if p.loaded != nil {
		return "", p.loaded
	}
	return p.text, nil
}

func loadPersona(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read persona %q: %w", path, err)
	}

	var pr persona
	if err := yaml.Unmarshal(data, &pr); err != nil {
		return "", fmt.Errorf("parse persona %q: %w", path, err)
	}

	parts := make([]string, 0, 4)
	if s := strings.TrimSpace(pr.Core); s != "" {
		parts = append(parts, "Core personality: "+s)
	}
	if s := strings.TrimSpace(pr.Side); s != "" {
		parts = append(parts, "Personality facets: "+s)
	}
	if s := strings.TrimSpace(pr.Identity); s != "" {
		parts = append(parts, "Identity: "+s)
	}
	if s := strings.TrimSpace(pr.Style); s != "" {
		parts = append(parts, "Way of speaking: "+s)
	}
	return strings.Join(parts, "\n"), nil
}

// Static wraps a fixed identity string, mostly for tests and embedders
// that already hold a persona.
type Static string

func (s Static) Identity(conversation, chatType string) (string, error) {
	return string(s), nil
}
