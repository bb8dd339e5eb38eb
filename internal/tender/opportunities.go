package tender

import (
	"encoding/json"
	"os"
)

// Opportunities is an ordered batch from a single fetch cycle. The order is
// the discovery order and is what ranking ties fall back to.
type Opportunities struct {
	Items []*Opportunity
}

func (o *Opportunities) Len() int {
	return len(o.Items)
}

func (o *Opportunities) FindByID(id string) *Opportunity {
	for _, item := range o.Items {
		if item.Key() == id {
			return item
		}
	}
	return nil
}

// Unique drops records repeating an identifier already seen earlier in the
// batch. Feeds regularly list the same tender twice.
func (o *Opportunities) Unique() []string {
	seen := make(map[string]struct{}, len(o.Items))
	kept := o.Items[:0]
	var dropped []string

	for _, item := range o.Items {
		key := item.Key()
		if _, ok := seen[key]; ok {
			dropped = append(dropped, key)
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, item)
	}

	o.Items = kept
	return dropped
}

func (o *Opportunities) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "opportunities_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(o); err != nil {
		return "", err
	}
	return file.Name(), nil
}
