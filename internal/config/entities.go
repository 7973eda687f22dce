package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weather-lookup-service/internal/domain"
	"github.com/couchcryptid/weather-lookup-service/internal/lookup"
)

// entityFile is the YAML layout of LOOKUP_CONFIG:
//
//	entities:
//	  - name: Forecast
//	    dir: data/forecasts
//	    format: lookup
//	    postfix: _fc
//	    dependent:
//	      - dir: data/stations
//	        format: ruby_hash
//	        key: _station
type entityFile struct {
	Entities []entitySpec `yaml:"entities"`
}

type entitySpec struct {
	Name                string          `yaml:"name"`
	Dir                 string          `yaml:"dir"`
	Format              string          `yaml:"format"`
	Postfix             string          `yaml:"postfix"`
	UnwantedChars       string          `yaml:"unwanted_chars"`
	ExceptionsUnchanged bool            `yaml:"exceptions_unchanged"`
	Dependent           []dependentSpec `yaml:"dependent"`
}

type dependentSpec struct {
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"`
	Postfix string `yaml:"postfix"`
	Key     string `yaml:"key"`
}

// LoadEntities reads entity definitions from the YAML file at path. Relative
// directories are resolved against the file's own directory.
func LoadEntities(path string) ([]domain.Entity, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity config: %w", err)
	}
	return ParseEntities(b, filepath.Dir(path))
}

// ParseEntities decodes and validates entity definitions.
func ParseEntities(data []byte, baseDir string) ([]domain.Entity, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f entityFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse entity config: %w", err)
	}
	if len(f.Entities) == 0 {
		return nil, errors.New("entity config defines no entities")
	}

	entities := make([]domain.Entity, 0, len(f.Entities))
	for _, s := range f.Entities {
		e, err := s.toEntity(baseDir)
		if err != nil {
			return nil, err
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func (s entitySpec) toEntity(baseDir string) (domain.Entity, error) {
	e := domain.Entity{
		Name:                s.Name,
		Dir:                 resolveDir(baseDir, s.Dir),
		Format:              lookup.Format(s.Format),
		Postfix:             s.Postfix,
		ExceptionsUnchanged: s.ExceptionsUnchanged,
	}
	if s.UnwantedChars != "" {
		re, err := regexp.Compile(s.UnwantedChars)
		if err != nil {
			return domain.Entity{}, fmt.Errorf("entity %q: unwanted_chars: %w", s.Name, err)
		}
		e.UnwantedChars = re
	}
	for _, d := range s.Dependent {
		e.Dependents = append(e.Dependents, domain.Dependent{
			Dir:     resolveDir(baseDir, d.Dir),
			Format:  lookup.Format(d.Format),
			Postfix: d.Postfix,
			Key:     d.Key,
		})
	}
	return e, nil
}

func resolveDir(baseDir, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(baseDir, dir)
}
