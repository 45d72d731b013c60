// Package prompts holds the system prompts of the travel assistants.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Data is what a prompt template can reference.
type Data struct {
	UserInfo string
	Time     time.Time
}

// Prompt is one assistant's system prompt.
type Prompt struct {
	Name   string `yaml:"name"`
	System string `yaml:"system"`

	tmpl *template.Template
}

// Set maps assistant keys to prompts.
type Set struct {
	prompts map[string]*Prompt
}

// Load parses the embedded prompts.
func Load() (*Set, error) {
	return Parse(defaultPrompts)
}

// Parse reads prompts from YAML and compiles their templates.
func Parse(data []byte) (*Set, error) {
	var raw map[string]*Prompt
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	for key, p := range raw {
		if p == nil || p.System == "" {
			return nil, fmt.Errorf("prompt %s has no system text", key)
		}
		tmpl, err := template.New(key).Option("missingkey=error").Parse(p.System)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", key, err)
		}
		p.tmpl = tmpl
	}
	return &Set{prompts: raw}, nil
}

// Get returns the prompt for key.
func (s *Set) Get(key string) (*Prompt, bool) {
	p, ok := s.prompts[key]
	return p, ok
}

// Render fills the prompt template for key.
func (s *Set) Render(key string, data Data) (string, error) {
	p, ok := s.prompts[key]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", key)
	}
	return p.Render(data)
}

// Render fills the template.
func (p *Prompt) Render(data Data) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
