// Package resolver runs the full address resolution pipeline: normalize,
// tag, cascade searches against the geocode service, validate candidates,
// and fall back to fuzzy road matching plus TIGER interpolation. Results
// are cached so each distinct raw address is resolved at most once.
package resolver

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/fuzzy"
	"github.com/sells-group/geocode-cli/internal/geocache"
	"github.com/sells-group/geocode-cli/internal/normalize"
	"github.com/sells-group/geocode-cli/internal/roads"
	"github.com/sells-group/geocode-cli/internal/search"
	"github.com/sells-group/geocode-cli/internal/tagger"
	"github.com/sells-group/geocode-cli/internal/validate"
)

// Searcher issues geocode queries. A nil Searcher means the service is not
// configured and search strategies report an error instead of running.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]search.Candidate, error)
}

// Options wires the resolver's collaborators. Validator, Matcher, Cache,
// and BadAddresses default when nil; Roads and Searcher are capabilities
// that may be absent.
type Options struct {
	Searcher     Searcher
	Validator    *validate.Validator
	Roads        roads.Store
	Matcher      *fuzzy.Matcher
	Tagger       *tagger.Tagger
	Cache        *geocache.Cache
	BadAddresses *geocache.BadAddressTable
}

// DefaultFuzzyThreshold is the minimum road-match score on the 0-100 scale.
const DefaultFuzzyThreshold = 80

// Resolver resolves raw address strings to coordinates.
type Resolver struct {
	searcher   Searcher
	validator  *validate.Validator
	roads      roads.Store
	matcher    *fuzzy.Matcher
	tagger     *tagger.Tagger
	cache      *geocache.Cache
	badAddrs   *geocache.BadAddressTable
	strategies []strategy
}

// New creates a Resolver. Tagger is required.
func New(opts Options) (*Resolver, error) {
	if opts.Tagger == nil {
		return nil, eris.New("resolver: tagger is required")
	}
	r := &Resolver{
		searcher:  opts.Searcher,
		validator: opts.Validator,
		roads:     opts.Roads,
		matcher:   opts.Matcher,
		tagger:    opts.Tagger,
		cache:     opts.Cache,
		badAddrs:  opts.BadAddresses,
	}
	if r.validator == nil {
		r.validator = validate.New(validate.DefaultConfig())
	}
	if r.matcher == nil {
		r.matcher = fuzzy.NewMatcher(DefaultFuzzyThreshold)
	}
	if r.cache == nil {
		var err error
		r.cache, err = geocache.New("", false)
		if err != nil {
			return nil, err
		}
	}
	if r.badAddrs == nil {
		r.badAddrs, _ = geocache.LoadBadAddresses("")
	}
	r.strategies = []strategy{
		directZipStrategy{r},
		cityStateStrategy{r},
		fuzzyZipStrategy{r},
		tigerStrategy{r},
	}
	return r, nil
}

// Resolve resolves one raw address, serving repeats from the cache.
// Concurrent calls for the same address perform the work once. The returned
// error reports infrastructure failure only; per-address failures are
// recorded in Resolution.Error.
func (r *Resolver) Resolve(ctx context.Context, rawAddress string) (*Resolution, error) {
	if strings.TrimSpace(rawAddress) == "" {
		return &Resolution{
			RawAddress: rawAddress,
			Error:      "Empty address",
			SearchMeta: SearchMetadata{RawAddress: rawAddress, FinalError: "Empty address"},
		}, nil
	}

	entry, hit, err := r.cache.GetOrCompute(rawAddress, func() (geocache.Entry, error) {
		res := r.resolveUncached(ctx, rawAddress)
		return toEntry(res), nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "resolver: cache")
	}

	res := fromEntry(entry)
	if hit {
		res.SearchMeta.AddressCacheUsed = true
		zap.L().Debug("address cache hit", zap.String("address", rawAddress))
	}
	return res, nil
}

func (r *Resolver) resolveUncached(ctx context.Context, rawAddress string) *Resolution {
	started := time.Now()

	address := rawAddress
	badUsed := false
	if update, ok := r.badAddrs.Lookup(rawAddress); ok {
		zap.L().Debug("bad address rewrite",
			zap.String("from", rawAddress), zap.String("to", update))
		address = update
		badUsed = true
	}

	norm := normalize.Normalize(address)

	res := &Resolution{
		RawAddress: rawAddress,
		TagMeta: TagMetadata{
			RawAddress:           rawAddress,
			FixZipRepair:         norm.ZipSource.Repaired(),
			FixStateAbbreviation: norm.FixedState,
			FixTownDirectional:   norm.FixedTown,
		},
		SearchMeta: SearchMetadata{
			RawAddress:           rawAddress,
			BadAddressLookupUsed: badUsed,
		},
	}
	defer func() {
		res.SearchMeta.ElapsedMS = time.Since(started).Milliseconds()
	}()

	tagged, err := r.tagger.Tag(ctx, norm.Cleaned)
	if err != nil {
		res.Error = "Tagging failed: " + eris.Cause(err).Error()
		res.SearchMeta.FinalError = res.Error
		zap.L().Debug("tagging failed", zap.String("address", address), zap.Error(err))
		return res
	}
	res.TagMeta.Metadata = tagged.Meta

	st := &attemptState{
		number: tagged.Expanded[tagger.LabelAddressNumber],
		street: tagger.BuildStreet(tagged.Expanded),
		town:   tagged.Expanded[tagger.LabelPlaceName],
		state:  tagged.Expanded[tagger.LabelStateName],
		zip:    tagged.Expanded[tagger.LabelZipCode],
		meta:   &res.SearchMeta,
	}
	res.Query = joinQueryParts(st.number, st.street, st.town, st.state, st.zip)

	var finalErr string
	for _, s := range r.strategies {
		out := s.attempt(ctx, st)
		res.SearchMeta.SearchDetails = append(res.SearchMeta.SearchDetails, out.trace)
		if out.accepted {
			res.Query = out.query
			res.Latitude = out.lat
			res.Longitude = out.lon
			res.DisplayName = out.displayName
			res.Method = s.name()
			res.ResultMetadata = out.resultMeta
			res.SearchMeta.SearchMethodAccepted = s.name()
			res.SearchMeta.SearchSuccessful = true
			zap.L().Debug("address resolved",
				zap.String("address", rawAddress),
				zap.String("method", s.name()),
				zap.String("display_name", out.displayName))
			return res
		}
		if out.trace.Attempted && out.errText != "" {
			finalErr = out.errText
		}
	}

	if finalErr == "" {
		finalErr = "No results"
	}
	res.Error = finalErr
	res.SearchMeta.FinalError = finalErr
	zap.L().Debug("address not resolved",
		zap.String("address", rawAddress), zap.String("error", finalErr))
	return res
}

// toEntry serializes a resolution for cache storage.
func toEntry(res *Resolution) geocache.Entry {
	return geocache.Entry{
		AddressRaw:       res.RawAddress,
		AddressGeocode:   res.Query,
		AddressNominatim: res.DisplayName,
		Latitude:         res.Latitude,
		Longitude:        res.Longitude,
		Method:           res.Method,
		Error:            res.Error,
		ResultMetadata:   marshalMeta(res.ResultMetadata),
		TagMetadata:      marshalMeta(res.TagMeta),
		SearchMetadata:   marshalMeta(res.SearchMeta),
		ProcessMetadata: marshalMeta(map[string]any{
			"tag_metadata":    res.TagMeta,
			"search_metadata": res.SearchMeta,
		}),
	}
}

// fromEntry reconstructs a resolution from a cache row. Malformed metadata
// blocks degrade to empty values rather than failing the lookup.
func fromEntry(entry geocache.Entry) *Resolution {
	res := &Resolution{
		RawAddress:  entry.AddressRaw,
		Query:       entry.AddressGeocode,
		DisplayName: entry.AddressNominatim,
		Latitude:    entry.Latitude,
		Longitude:   entry.Longitude,
		Method:      entry.Method,
		Error:       entry.Error,
	}
	if entry.ResultMetadata != "" {
		if err := json.Unmarshal([]byte(entry.ResultMetadata), &res.ResultMetadata); err != nil {
			zap.L().Warn("result metadata unmarshal failed", zap.Error(err))
		}
	}
	if entry.TagMetadata != "" {
		if err := json.Unmarshal([]byte(entry.TagMetadata), &res.TagMeta); err != nil {
			zap.L().Warn("tag metadata unmarshal failed", zap.Error(err))
		}
	}
	if entry.SearchMetadata != "" {
		if err := json.Unmarshal([]byte(entry.SearchMetadata), &res.SearchMeta); err != nil {
			zap.L().Warn("search metadata unmarshal failed", zap.Error(err))
		}
	}
	return res
}
