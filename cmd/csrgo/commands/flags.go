package commands

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hupe1980/csrgo"
	"github.com/hupe1980/csrgo/model"
)

// addTopologyFlags registers the flags shared by estimate and import that
// shape relationship types.
func addTopologyFlags(fs *pflag.FlagSet) {
	fs.Int("concurrency", 4, "import workers and shards")
	fs.String("aggregation", "single", "parallel edge policy (none, single, sum, min, max, count, keep)")
	fs.String("orientation", "natural", "projection (natural, reverse, undirected)")
	fs.Bool("property", false, "store one property per relationship")
	fs.Float64("default-value", 0, "property of edges without a value")
	fs.String("inverse", "none", "inverse index (none, eager, lazy)")
	fs.StringSlice("types", nil, "declared relationship types; empty imports untyped edges")
}

// topologyOptions turns the topology flags into import options.
func topologyOptions(v *viper.Viper) ([]csrgo.Option, error) {
	agg, err := model.ParseAggregation(v.GetString("aggregation"))
	if err != nil {
		return nil, err
	}
	or, err := model.ParseOrientation(v.GetString("orientation"))
	if err != nil {
		return nil, err
	}
	inv, err := csrgo.ParseInverseIndex(v.GetString("inverse"))
	if err != nil {
		return nil, err
	}

	tc := csrgo.TypeConfig{
		Aggregation:  agg,
		Orientation:  or,
		Inverse:      inv,
		HasProperty:  v.GetBool("property"),
		DefaultValue: v.GetFloat64("default-value"),
	}

	opts := []csrgo.Option{csrgo.WithConcurrency(v.GetInt("concurrency"))}
	types := v.GetStringSlice("types")
	if len(types) == 0 {
		opts = append(opts, csrgo.WithAggregation(agg), csrgo.WithOrientation(or), csrgo.WithInverseIndex(inv))
		if tc.HasProperty {
			opts = append(opts, csrgo.WithProperty(tc.DefaultValue))
		}
		return opts, nil
	}
	for _, name := range types {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("empty relationship type in %q", types)
		}
		opts = append(opts, csrgo.WithRelationshipType(csrgo.RelationshipType(name), tc))
	}
	return opts, nil
}

// parseBytes parses a size like "512MiB" or "2GB". The empty string is 0.
func parseBytes(flag, s string) (int64, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", flag, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("%s: %s is too large", flag, s)
	}
	return int64(n), nil
}

// parseCount parses a non-negative count such as "1000000", "1_000_000",
// "1,000,000" or "1e6".
func parseCount(s string) (uint64, error) {
	s = strings.NewReplacer(",", "", "_", "").Replace(strings.TrimSpace(s))
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f >= math.MaxUint64 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return uint64(f), nil
}
