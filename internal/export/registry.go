package export

import (
	"os"
	"sort"

	"github.com/banshee-data/sigvault/internal/neurone"
	"github.com/banshee-data/sigvault/internal/reader/actigraph"
	"github.com/banshee-data/sigvault/internal/reader/edf"
	"github.com/banshee-data/sigvault/internal/reader/empatica"
	"github.com/banshee-data/sigvault/internal/reader/firstbeat"
	"github.com/banshee-data/sigvault/internal/reader/mydarwin"
	"github.com/banshee-data/sigvault/internal/reader/psg"
	"github.com/banshee-data/sigvault/internal/reader/shimmer"
	"github.com/banshee-data/sigvault/internal/series"
)

// Kind classifies what a source read produces and therefore which write
// path its mappings take.
type Kind int

const (
	KindSignal Kind = iota
	KindEvents
	KindText
)

// Source is one registry entry. Exactly the reader matching Kind is set;
// the others stay nil.
type Source struct {
	Kind       Kind
	ReadSignal func(string) (series.Dataset, error)
	ReadEvents func(string) (*neurone.EventTable, error)
	ReadText   func(string) (string, error)
}

// The registry is a closed table: data types are compiled in, not
// discovered, so an unknown data_type is a configuration error rather
// than a plugin lookup failure.
var registry = map[string]Source{
	"actigraph":               {Kind: KindSignal, ReadSignal: actigraph.ReadFile},
	"edf":                     {Kind: KindSignal, ReadSignal: edf.ReadFile},
	"faros":                   {Kind: KindSignal, ReadSignal: edf.ReadFaros},
	"empatica":                {Kind: KindSignal, ReadSignal: empatica.ReadFolder},
	"neurone":                 {Kind: KindSignal, ReadSignal: neurone.ReadSignals},
	"neurone_events":          {Kind: KindEvents, ReadEvents: neurone.ReadEvents},
	"bodyguard_features":      {Kind: KindSignal, ReadSignal: firstbeat.ReadFeatures},
	"bodyguard_features_misc": {Kind: KindSignal, ReadSignal: firstbeat.ReadMiscFeatures},
	"bodyguard_ibi":           {Kind: KindSignal, ReadSignal: firstbeat.ReadIBI},
	"bodyguard_acc":           {Kind: KindSignal, ReadSignal: firstbeat.ReadACC},
	"hypnogram":               {Kind: KindSignal, ReadSignal: psg.ReadHypnogram},
	"arousal":                 {Kind: KindSignal, ReadSignal: psg.ReadArousal},
	"shimmer":                 {Kind: KindSignal, ReadSignal: shimmer.ReadFile},
	"mydarwin":                {Kind: KindSignal, ReadSignal: mydarwin.ReadFile},
	"text":                    {Kind: KindText, ReadText: readTextFile},
}

// Lookup resolves a data_type to its source entry.
func Lookup(dataType string) (Source, bool) {
	s, ok := registry[dataType]
	return s, ok
}

// DataTypes returns the registered data type names, for error messages
// and CLI help.
func DataTypes() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func readTextFile(fname string) (string, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
