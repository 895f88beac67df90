package datafetcher

import (
	"fmt"
	"sort"
)

// Supported index names.
const (
	IndexFTSE100         = "FTSE_100"
	IndexFTSE250         = "FTSE_250"
	IndexFTSE350         = "FTSE_350"
	IndexFTSEAllShare    = "FTSE_ALL_SHARE"
	IndexFTSEAimAllShare = "FTSE_AIM_ALL_SHARE"
)

// HeatmapIndex is the index heatmaps and price history are built over.
const HeatmapIndex = IndexFTSEAllShare

// IndexConfig holds the source pages for one supported index.
type IndexConfig struct {
	TickersURL      string
	ConstituentsURL string // fundamentals links live on the constituents page
}

var indexConfigs = map[string]IndexConfig{
	IndexFTSE100: {
		TickersURL:      "https://www.londonstockexchange.com/indices/ftse-100/constituents/table",
		ConstituentsURL: "https://www.lse.co.uk/share-prices/indices/ftse-100/constituents.html",
	},
	IndexFTSE250: {
		TickersURL:      "https://www.londonstockexchange.com/indices/ftse-250/constituents/table",
		ConstituentsURL: "https://www.lse.co.uk/share-prices/indices/ftse-250/constituents.html",
	},
	IndexFTSE350: {
		TickersURL:      "https://www.londonstockexchange.com/indices/ftse-350/constituents/table",
		ConstituentsURL: "https://www.lse.co.uk/share-prices/indices/ftse-350/constituents.html",
	},
	IndexFTSEAllShare: {
		TickersURL:      "https://www.londonstockexchange.com/indices/ftse-all-share/constituents/table",
		ConstituentsURL: "https://www.lse.co.uk/share-prices/indices/ftse-all-share/constituents.html",
	},
	IndexFTSEAimAllShare: {
		TickersURL:      "https://www.londonstockexchange.com/indices/ftse-aim-all-share/constituents/table",
		ConstituentsURL: "https://www.lse.co.uk/share-prices/indices/ftse-aim-all-share/constituents.html",
	},
}

// SupportedIndexes returns the supported index names, sorted.
func SupportedIndexes() []string {
	names := make([]string, 0, len(indexConfigs))
	for name := range indexConfigs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupportedIndex reports whether name is a supported index.
func IsSupportedIndex(name string) bool {
	_, ok := indexConfigs[name]
	return ok
}

// ConfigForIndex returns the source pages for an index.
func ConfigForIndex(name string) (IndexConfig, error) {
	cfg, ok := indexConfigs[name]
	if !ok {
		return IndexConfig{}, fmt.Errorf("unsupported index: %s", name)
	}
	return cfg, nil
}
