// Package models holds the static catalog of selectable model descriptors.
// The catalog is immutable at runtime; an optional YAML file replaces the
// built-in set at startup.
package models

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider tags. Dispatch happens on these, never on client types.
const (
	ProviderGroq    = "groq"
	ProviderMistral = "mistral"
	ProviderGemini  = "gemini"
)

var ErrUnknownModel = errors.New("unknown model")

// Descriptor describes one selectable model.
type Descriptor struct {
	Name      string  `yaml:"name"`
	Provider  string  `yaml:"provider"`
	ID        string  `yaml:"id"`
	MaxTokens int     `yaml:"max_tokens"`
	Temp      float64 `yaml:"temperature"`
}

type Catalog struct {
	defaultName string
	byName      map[string]Descriptor
	order       []string
}

// Default is the built-in catalog matching the providers the bot ships with.
func Default() *Catalog {
	c, err := build("Llama 3.3 70B", []Descriptor{
		{Name: "Llama 3.3 70B", Provider: ProviderGroq, ID: "llama-3.3-70b-versatile", MaxTokens: 8192, Temp: 0.7},
		{Name: "DeepSeek R1 70B", Provider: ProviderGroq, ID: "deepseek-r1-distill-llama-70b", MaxTokens: 8192, Temp: 0.6},
		{Name: "Mistral Large", Provider: ProviderMistral, ID: "mistral-large-latest", MaxTokens: 8192, Temp: 0.7},
		{Name: "Gemini 2.0 Flash", Provider: ProviderGemini, ID: "gemini-2.0-flash", MaxTokens: 8192, Temp: 0.7},
	})
	if err != nil {
		panic(err)
	}
	return c
}

type catalogFile struct {
	Default string       `yaml:"default"`
	Models  []Descriptor `yaml:"models"`
}

// LoadFile reads a YAML catalog. Shape:
//
//	default: "Llama 3.3 70B"
//	models:
//	  - name: "Llama 3.3 70B"
//	    provider: groq
//	    id: llama-3.3-70b-versatile
//	    max_tokens: 8192
//	    temperature: 0.7
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("models: read catalog %s: %w", path, err)
	}
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("models: decode catalog %s: %w", path, err)
	}
	if len(cf.Models) == 0 {
		return nil, fmt.Errorf("models: catalog %s has no models", path)
	}
	if strings.TrimSpace(cf.Default) == "" {
		cf.Default = cf.Models[0].Name
	}
	return build(cf.Default, cf.Models)
}

func build(defaultName string, list []Descriptor) (*Catalog, error) {
	byName := make(map[string]Descriptor, len(list))
	order := make([]string, 0, len(list))
	for _, d := range list {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("models: descriptor with empty name")
		}
		switch d.Provider {
		case ProviderGroq, ProviderMistral, ProviderGemini:
		default:
			return nil, fmt.Errorf("models: %s: unknown provider tag %q", name, d.Provider)
		}
		if strings.TrimSpace(d.ID) == "" {
			return nil, fmt.Errorf("models: %s: empty backend model id", name)
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("models: duplicate descriptor %q", name)
		}
		if d.MaxTokens <= 0 {
			d.MaxTokens = 4096
		}
		byName[name] = d
		order = append(order, name)
	}
	if _, ok := byName[defaultName]; !ok {
		return nil, fmt.Errorf("models: default %q not in catalog", defaultName)
	}
	return &Catalog{defaultName: defaultName, byName: byName, order: order}, nil
}

func (c *Catalog) DefaultName() string { return c.defaultName }

// Lookup resolves a display name to its descriptor.
func (c *Catalog) Lookup(name string) (Descriptor, error) {
	d, ok := c.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return d, nil
}

// Names returns display names in catalog order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Providers returns the distinct provider tags referenced by the catalog,
// sorted. serve uses this to decide which backend clients must be built.
func (c *Catalog) Providers() []string {
	seen := map[string]bool{}
	for _, d := range c.byName {
		seen[d.Provider] = true
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
