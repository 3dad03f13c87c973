// Package lessons loads the YAML lesson catalogue and seeds the store.
package lessons

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/datagym/internal/domain"
)

//go:embed default.yaml
var defaultCatalogue []byte

// Store is the part of the repository the catalogue needs.
type Store interface {
	UpsertLessons(ctx context.Context, lessons []domain.Lesson) error
	CountLessons(ctx context.Context) (int, error)
}

type catalogue struct {
	Lessons []domain.Lesson `yaml:"lessons"`
}

// Load decodes and validates a catalogue.
func Load(r io.Reader) ([]domain.Lesson, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c catalogue
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalogue is empty")
		}
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}

	seen := make(map[string]bool, len(c.Lessons))
	for i := range c.Lessons {
		l := &c.Lessons[i]
		if l.Code == "" {
			return nil, fmt.Errorf("lesson %d: missing code", i+1)
		}
		if seen[l.Code] {
			return nil, fmt.Errorf("lesson %s: duplicate code", l.Code)
		}
		seen[l.Code] = true

		track, err := domain.ParseTrack(string(l.Track))
		if err != nil {
			return nil, fmt.Errorf("lesson %s: %w", l.Code, err)
		}
		level, err := domain.ParseDifficulty(string(l.Level))
		if err != nil {
			return nil, fmt.Errorf("lesson %s: %w", l.Code, err)
		}
		l.Track, l.Level = track, level
		if l.Title == "" {
			return nil, fmt.Errorf("lesson %s: missing title", l.Code)
		}
	}
	return c.Lessons, nil
}

// Default returns the built-in catalogue.
func Default() ([]domain.Lesson, error) {
	return Load(bytes.NewReader(defaultCatalogue))
}

// Import loads a catalogue from r and upserts it. It returns the number of
// lessons written.
func Import(ctx context.Context, s Store, r io.Reader) (int, error) {
	ls, err := Load(r)
	if err != nil {
		return 0, err
	}
	if err := s.UpsertLessons(ctx, ls); err != nil {
		return 0, err
	}
	return len(ls), nil
}

// Seed writes the built-in catalogue when the store has no lessons.
func Seed(ctx context.Context, s Store) error {
	n, err := s.CountLessons(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Debug("lesson catalogue already present", "count", n)
		return nil
	}
	ls, err := Default()
	if err != nil {
		return fmt.Errorf("load default catalogue: %w", err)
	}
	if err := s.UpsertLessons(ctx, ls); err != nil {
		return err
	}
	slog.Info("seeded lesson catalogue", "count", len(ls))
	return nil
}
