// Package questions holds the fixed, ordered interview question bank.
package questions

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrEmptyBank = errors.New("question bank has no questions")

// Default is the F1 visa question set used when no questions file is configured.
var Default = []string{
	"Why do you want to study in the United States?",
	"What made you choose this specific university?",
	"How do you plan to fund your education?",
	"What are your plans after completing your degree?",
	"Do you have any family in the U.S.?",
}

// Bank is an immutable ordered sequence of questions. It is safe for
// concurrent read-only use.
type Bank struct {
	items []string
}

// New copies qs into a Bank. Blank entries are rejected.
func New(qs []string) (*Bank, error) {
	if len(qs) == 0 {
		return nil, ErrEmptyBank
	}
	items := make([]string, len(qs))
	for i, q := range qs {
		q = strings.TrimSpace(q)
		if q == "" {
			return nil, fmt.Errorf("question %d is blank", i+1)
		}
		items[i] = q
	}
	return &Bank{items: items}, nil
}

// MustDefault returns the built-in bank.
func MustDefault() *Bank {
	b, err := New(Default)
	if err != nil {
		panic(err)
	}
	return b
}

type file struct {
	Questions []string `yaml:"questions"`
}

// Load reads a YAML file of the form `questions: [...]`. An empty path
// yields the default bank.
func Load(path string) (*Bank, error) {
	if path == "" {
		return MustDefault(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions file %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse questions file %s: %w", path, err)
	}

	b, err := New(f.Questions)
	if err != nil {
		return nil, fmt.Errorf("validate questions file %s: %w", path, err)
	}
	return b, nil
}

func (b *Bank) Len() int { return len(b.items) }

// At returns the question at index i, or false when i is out of range.
func (b *Bank) At(i int) (string, bool) {
	if i < 0 || i >= len(b.items) {
		return "", false
	}
	return b.items[i], true
}

func (b *Bank) All() []string {
	out := make([]string, len(b.items))
	copy(out, b.items)
	return out
}
