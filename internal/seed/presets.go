package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yml
var builtinPresets []byte

// Preset sizes a seeding run. Ratios are per-pair probabilities in [0, 1].
type Preset struct {
	Users                   int     `yaml:"users"`
	PostsPerUser            int     `yaml:"posts_per_user"`
	FollowRatio             float64 `yaml:"follow_ratio"`
	LikeRatio               float64 `yaml:"like_ratio"`
	CommentsPerPost         int     `yaml:"comments_per_post"`
	BookmarkRatio           float64 `yaml:"bookmark_ratio"`
	Conversations           int     `yaml:"conversations"`
	MessagesPerConversation int     `yaml:"messages_per_conversation"`
}

type presetFile struct {
	Presets map[string]Preset `yaml:"presets"`
}

// Validate rejects presets that cannot be seeded.
func (p Preset) Validate() error {
	if p.Users < 1 {
		return fmt.Errorf("users must be at least 1")
	}
	if p.PostsPerUser < 0 || p.CommentsPerPost < 0 || p.Conversations < 0 || p.MessagesPerConversation < 0 {
		return fmt.Errorf("counts must not be negative")
	}
	for name, r := range map[string]float64{
		"follow_ratio":   p.FollowRatio,
		"like_ratio":     p.LikeRatio,
		"bookmark_ratio": p.BookmarkRatio,
	} {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	return nil
}

// LoadPresets decodes a presets document and validates every entry.
func LoadPresets(r io.Reader) (map[string]Preset, error) {
	var doc presetFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	for name, p := range doc.Presets {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return doc.Presets, nil
}

// LoadPresetFile reads presets from path, or the built-in set when path is empty.
func LoadPresetFile(path string) (map[string]Preset, error) {
	if path == "" {
		return LoadPresets(bytes.NewReader(builtinPresets))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadPresets(f)
}

// Lookup returns the named preset from presets.
func Lookup(presets map[string]Preset, name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		names := make([]string, 0, len(presets))
		for n := range presets {
			names = append(names, n)
		}
		slices.Sort(names)
		return Preset{}, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(names, ", "))
	}
	return p, nil
}
