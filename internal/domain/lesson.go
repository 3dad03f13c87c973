package domain

import (
	"fmt"
	"strings"
)

// Track is a practice language.
type Track string

// Supported tracks. The Python track runs the Starlark dialect.
const (
	TrackSQL    Track = "SQL"
	TrackPython Track = "PYTHON"
)

// Tracks lists the supported tracks.
var Tracks = []Track{TrackSQL, TrackPython}

// ParseTrack accepts a track name in any case.
func ParseTrack(s string) (Track, error) {
	t := Track(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TrackSQL, TrackPython:
		return t, nil
	}
	return "", fmt.Errorf("unknown track %q", s)
}

// Difficulty is a lesson level.
type Difficulty string

// Supported difficulties.
const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Difficulties lists the supported difficulties from easiest to hardest.
var Difficulties = []Difficulty{Beginner, Intermediate, Advanced}

// ParseDifficulty accepts a difficulty name in any case.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Beginner, Intermediate, Advanced:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Lesson is a single exercise in the catalogue.
type Lesson struct {
	Code     string     `json:"code" yaml:"code"`
	Track    Track      `json:"track" yaml:"track"`
	Level    Difficulty `json:"level" yaml:"level"`
	Title    string     `json:"title" yaml:"title"`
	Theory   string     `json:"theory" yaml:"theory"`
	Task     string     `json:"task" yaml:"task"`
	Solution string     `json:"solution" yaml:"solution"`
}

// DisplayKey is the label shown in the lesson picker.
func (l *Lesson) DisplayKey() string {
	return l.Code + " - " + l.Title
}
