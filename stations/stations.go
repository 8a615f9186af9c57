// Package stations holds the police station reference data: Präsidien
// and their Reviere, loaded from a pregenerated dataset file. The data
// is externally supplied; this service only searches it and feeds the
// selected stations into route calculation.
package stations

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"github.com/samber/lo"

	"github.com/revierkompass/revierkompass/geomodel"
)

type Contact struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type Praesidium struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Coordinates  orb.Point `json:"coordinates"`
	ChildReviere []string  `json:"childReviere"`
}

type Revier struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PraesidiumID string    `json:"praesidiumId"`
	Coordinates  orb.Point `json:"coordinates"`
	Contact      *Contact  `json:"contact,omitempty"`
}

// Dataset is the serialized form produced by the import command.
type Dataset struct {
	Praesidien []Praesidium `json:"praesidien"`
	Reviere    []Revier     `json:"reviere"`
}

type Store struct {
	praesidien []Praesidium
	reviere    []Revier

	praesidiumByID map[string]Praesidium
	revierByID     map[string]Revier
}

func NewStore(ds Dataset) *Store {
	return &Store{
		praesidien:     ds.Praesidien,
		reviere:        ds.Reviere,
		praesidiumByID: lo.KeyBy(ds.Praesidien, func(p Praesidium) string { return p.ID }),
		revierByID:     lo.KeyBy(ds.Reviere, func(r Revier) string { return r.ID }),
	}
}

// LoadFile reads a dataset from a JSON file, transparently decompressing
// when the name ends in .zst.
func LoadFile(path string) (*Store, error) {
	reader, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var ds Dataset
	if err := json.NewDecoder(reader).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decoding stations dataset: %w", err)
	}
	return NewStore(ds), nil
}

// SaveFile writes a dataset as JSON, zstd-compressed when the name ends
// in .zst. The import command uses this to produce the serve input.
func SaveFile(ds Dataset, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating stations file: %w", err)
	}
	defer file.Close()

	var w io.Writer = file
	var enc *zstd.Encoder
	if strings.HasSuffix(path, ".zst") {
		enc, err = zstd.NewWriter(file)
		if err != nil {
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		w = enc
	}

	if err := json.NewEncoder(w).Encode(ds); err != nil {
		return fmt.Errorf("encoding stations dataset: %w", err)
	}
	if enc != nil {
		return enc.Close()
	}
	return nil
}

func openReader(name string) (io.ReadCloser, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening stations file: %w", err)
	}

	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	}

	return file, nil
}

// SearchPraesidien filters by case-insensitive name substring. An empty
// query returns everything.
func (s *Store) SearchPraesidien(query string) []Praesidium {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.praesidien
	}
	return lo.Filter(s.praesidien, func(p Praesidium, _ int) bool {
		return strings.Contains(strings.ToLower(p.Name), query)
	})
}

func (s *Store) Praesidium(id string) (Praesidium, bool) {
	p, ok := s.praesidiumByID[id]
	return p, ok
}

func (s *Store) ReviereOf(praesidiumID string) []Revier {
	return lo.Filter(s.reviere, func(r Revier, _ int) bool {
		return r.PraesidiumID == praesidiumID
	})
}

// Targets maps Revier ids to routing targets, silently skipping unknown
// ids.
func (s *Store) Targets(ids []string) []geomodel.Target {
	return lo.FilterMap(ids, func(id string, _ int) (geomodel.Target, bool) {
		r, ok := s.revierByID[id]
		if !ok {
			return geomodel.Target{}, false
		}
		return geomodel.Target{ID: r.ID, Name: r.Name, Coordinates: r.Coordinates}, true
	})
}

func (s *Store) Counts() (praesidien, reviere int) {
	return len(s.praesidien), len(s.reviere)
}
