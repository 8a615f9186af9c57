package stations

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// The raw export mixes station categories; only these two make it into
// the dataset.
const (
	tagRevier     = "Polizeirevier"
	tagPraesidium = "Polizeipräsidium"
)

var excludedNameParts = []string{
	"Polizeiposten",
	"Hochschule für Polizei",
	"Kriminalinspektionen",
	"Wasserschutzpolizei",
}

type rawStation struct {
	name       string
	address    string
	city       string
	zip        string
	lat        string
	lon        string
	tags       string
	phone      string
	praesidium string
}

// ImportCSV converts the raw police station export into a Dataset.
// Rows with unparseable coordinates are skipped and counted, not fatal.
func ImportCSV(r io.Reader) (Dataset, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return Dataset{}, 0, fmt.Errorf("reading csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"sl_store", "sl_latitude", "sl_longitude", "sl_tags", "Polizeipräsidium"} {
		if _, ok := col[required]; !ok {
			return Dataset{}, 0, fmt.Errorf("csv is missing column %q", required)
		}
	}

	var raws []rawStation
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, 0, fmt.Errorf("reading csv record: %w", err)
		}
		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		raws = append(raws, rawStation{
			name:       field("sl_store"),
			address:    field("sl_address"),
			city:       field("sl_city"),
			zip:        field("sl_zip"),
			lat:        field("sl_latitude"),
			lon:        field("sl_longitude"),
			tags:       field("sl_tags"),
			phone:      field("sl_phone"),
			praesidium: field("Polizeipräsidium"),
		})
	}

	return buildDataset(raws)
}

func buildDataset(raws []rawStation) (Dataset, int, error) {
	kept := make([]rawStation, 0, len(raws))
	for _, raw := range raws {
		if raw.tags != tagRevier && raw.tags != tagPraesidium {
			continue
		}
		if excludedName(raw.name) {
			continue
		}
		kept = append(kept, raw)
	}

	ds := Dataset{}
	praesidiumIndex := make(map[string]int)
	skipped := 0

	for i, raw := range kept {
		lat, latErr := strconv.ParseFloat(raw.lat, 64)
		lon, lonErr := strconv.ParseFloat(raw.lon, 64)
		if latErr != nil || lonErr != nil {
			skipped++
			continue
		}
		coordinates := orb.Point{lon, lat}

		idx, ok := praesidiumIndex[raw.praesidium]
		if !ok {
			coords := coordinates
			// A Präsidium row carries the seat coordinates; without one
			// the first Revier of the group stands in.
			for _, other := range kept {
				if other.tags == tagPraesidium && other.praesidium == raw.praesidium {
					if pLat, err := strconv.ParseFloat(other.lat, 64); err == nil {
						if pLon, err := strconv.ParseFloat(other.lon, 64); err == nil {
							coords = orb.Point{pLon, pLat}
						}
					}
					break
				}
			}
			idx = len(ds.Praesidien)
			praesidiumIndex[raw.praesidium] = idx
			ds.Praesidien = append(ds.Praesidien, Praesidium{
				ID:          "praesidium-" + slug(raw.praesidium),
				Name:        raw.praesidium,
				Coordinates: coords,
			})
		}

		if raw.tags != tagRevier {
			continue
		}
		revier := Revier{
			ID:           fmt.Sprintf("revier-%d", i),
			Name:         raw.name,
			PraesidiumID: ds.Praesidien[idx].ID,
			Coordinates:  coordinates,
		}
		if raw.address != "" || raw.phone != "" {
			revier.Contact = &Contact{
				Address: strings.TrimSpace(fmt.Sprintf("%s, %s %s", raw.address, raw.zip, raw.city)),
				Phone:   raw.phone,
			}
		}
		ds.Reviere = append(ds.Reviere, revier)
		ds.Praesidien[idx].ChildReviere = append(ds.Praesidien[idx].ChildReviere, revier.ID)
	}

	return ds, skipped, nil
}

func excludedName(name string) bool {
	for _, part := range excludedNameParts {
		if strings.Contains(name, part) {
			return true
		}
	}
	return false
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
