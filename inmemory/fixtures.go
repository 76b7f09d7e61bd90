package inmemory

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Fixtures is the file format read by LoadFixtures. JSON is accepted as
// well, being a subset of YAML.
type Fixtures struct {
	Documents []Document `yaml:"documents"`
}

// LoadFixtures decodes fixtures from r.
func LoadFixtures(r io.Reader) ([]Document, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to decode fixtures")
	}

	for i, doc := range f.Documents {
		if doc.ID == "" {
			return nil, errors.Newf("fixture %d has no id", i)
		}
		switch doc.Kind {
		case KindExperience, KindPage, KindComponent:
		default:
			return nil, errors.Newf("fixture %s has unknown kind %q", doc.ID, doc.Kind)
		}
		if doc.Fields == nil {
			f.Documents[i].Fields = map[string]interface{}{}
		}
	}
	return f.Documents, nil
}

// Load adds every fixture in r to the store.
func (s *Store) Load(r io.Reader) error {
	docs, err := LoadFixtures(r)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		s.AddDocument(doc)
	}
	return nil
}

// LoadFile adds every fixture in the file at path to the store.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open fixtures %s", path)
	}
	defer f.Close()

	if err := s.Load(f); err != nil {
		return errors.Wrapf(err, "failed to load fixtures %s", path)
	}
	return nil
}
