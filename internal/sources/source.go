// Package sources declares the data sources the insight pipeline can query,
// the fixed schema each source owns, and the routing rules that keep
// synthesized queries inside that schema.
package sources

import (
	"encoding/json"
	"slices"
	"strings"
)

// DataSource identifies the data source a query is routed to.
type DataSource string

// Known data sources. Combined spans every concrete source.
const (
	Coupa    DataSource = "coupa"
	Baan     DataSource = "baan"
	Combined DataSource = "combined"
)

var all = []DataSource{Coupa, Baan, Combined}

var concrete = []DataSource{Coupa, Baan}

// All returns every data source value including Combined.
func All() []DataSource {
	return all
}

// Concrete returns the sources that own a schema.
func Concrete() []DataSource {
	return concrete
}

// Parse validates s as a known data source, ignoring case and surrounding space.
func Parse(s string) (DataSource, error) {
	v := DataSource(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(all, v) {
		return "", ErrUnknownSource
	}
	return v, nil
}

// IsConcrete reports whether the source owns a schema.
func (d DataSource) IsConcrete() bool {
	return slices.Contains(concrete, d)
}

// UnmarshalJSON validates that the decoded string is a known data source.
func (d *DataSource) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
