package pricing

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"sync"
)

// LaborType selects the labor-rate multiplier of the crew.
type LaborType string

const (
	LaborApprentice  LaborType = "apprentice"
	LaborElectrician LaborType = "electrician"
	LaborMaster      LaborType = "master"
)

// TimeAdjustment selects the labor-rate multiplier for when the work is done.
type TimeAdjustment string

const (
	TimeNormal   TimeAdjustment = "normal"
	TimeEvening  TimeAdjustment = "evening"
	TimeOvertime TimeAdjustment = "overtime"
	TimeWeekend  TimeAdjustment = "weekend"
)

var laborRateMultipliers = map[LaborType]float64{
	LaborApprentice:  0.75,
	LaborElectrician: 1.0,
	LaborMaster:      1.25,
}

var timeAdjustmentMultipliers = map[TimeAdjustment]float64{
	TimeNormal:   1.0,
	TimeEvening:  1.25,
	TimeOvertime: 1.5,
	TimeWeekend:  2.0,
}

// ParseLaborType returns a ConfigurationError for anything outside the lookup.
func ParseLaborType(raw string) (LaborType, error) {
	lt := LaborType(raw)
	if _, ok := laborRateMultipliers[lt]; !ok {
		return "", configurationError("labor_type", raw)
	}
	return lt, nil
}

// ParseTimeAdjustment returns a ConfigurationError for anything outside the lookup.
func ParseTimeAdjustment(raw string) (TimeAdjustment, error) {
	ta := TimeAdjustment(raw)
	if _, ok := timeAdjustmentMultipliers[ta]; !ok {
		return "", configurationError("time_adjustment", raw)
	}
	return ta, nil
}

// FactorContext is the resolved set of multipliers for one calculation run.
// It is a plain value and is shared read-only by all item computations.
type FactorContext struct {
	GlobalMultiplier        float64        `json:"global_multiplier"`
	ProfileID               int64          `json:"profile_id,omitempty"`
	BuildingType            string         `json:"building_type,omitempty"`
	ProfileTimeMultiplier   float64        `json:"profile_time_multiplier"`
	AccessibilityMultiplier float64        `json:"accessibility_multiplier"`
	LaborType               LaborType      `json:"labor_type"`
	TimeAdjustment          TimeAdjustment `json:"time_adjustment"`
	LaborRateMultiplier     float64        `json:"labor_rate_multiplier"`
}

// TimeMultiplier is the combined multiplier applied to rule-adjusted time.
func (fc FactorContext) TimeMultiplier() float64 {
	return fc.GlobalMultiplier * fc.ProfileTimeMultiplier * fc.AccessibilityMultiplier
}

// ResolveContext combines active global factors, the optional building
// profile and the labor lookups into a FactorContext.
func ResolveContext(profile *BuildingProfile, factors []GlobalFactor, labor LaborType, adjustment TimeAdjustment) (FactorContext, error) {
	laborMultiplier, ok := laborRateMultipliers[labor]
	if !ok {
		return FactorContext{}, configurationError("labor_type", string(labor))
	}
	adjustmentMultiplier, ok := timeAdjustmentMultipliers[adjustment]
	if !ok {
		return FactorContext{}, configurationError("time_adjustment", string(adjustment))
	}

	fc := FactorContext{
		GlobalMultiplier:        1.0,
		ProfileTimeMultiplier:   1.0,
		AccessibilityMultiplier: 1.0,
		LaborType:               labor,
		TimeAdjustment:          adjustment,
		LaborRateMultiplier:     laborMultiplier * adjustmentMultiplier,
	}

	for _, f := range activeFactors(factors) {
		if !validMultiplier(f.Multiplier) {
			return FactorContext{}, integrityError("global_factor", strconv.FormatInt(f.ID, 10), "multiplier", f.Multiplier, "must be finite and >= 0")
		}
		fc.GlobalMultiplier *= f.Multiplier
	}

	if profile != nil {
		id := strconv.FormatInt(profile.ID, 10)
		if !validMultiplier(profile.TimeMultiplier) {
			return FactorContext{}, integrityError("building_profile", id, "time_multiplier", profile.TimeMultiplier, "must be finite and >= 0")
		}
		if !validMultiplier(profile.AccessibilityMultiplier) {
			return FactorContext{}, integrityError("building_profile", id, "accessibility_multiplier", profile.AccessibilityMultiplier, "must be finite and >= 0")
		}
		fc.ProfileID = profile.ID
		fc.BuildingType = profile.BuildingType
		fc.ProfileTimeMultiplier = profile.TimeMultiplier
		fc.AccessibilityMultiplier = profile.AccessibilityMultiplier
	}

	return fc, nil
}

// activeFactors returns the active factors ordered by id, so the product is
// the same regardless of the order the caller loaded them in.
func activeFactors(factors []GlobalFactor) []GlobalFactor {
	active := make([]GlobalFactor, 0, len(factors))
	for _, f := range factors {
		if f.Active {
			active = append(active, f)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active
}

func validMultiplier(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ContextCache memoizes ResolveContext. Global factors and building profiles
// change rarely, so repeated calculations usually hit the same key.
type ContextCache struct {
	mu      sync.Mutex
	entries map[string]FactorContext
}

// NewContextCache returns an empty cache.
func NewContextCache() *ContextCache {
	return &ContextCache{entries: make(map[string]FactorContext)}
}

// Resolve returns the cached context for the inputs, resolving and storing it
// on a miss. Errors are not cached.
func (c *ContextCache) Resolve(profile *BuildingProfile, factors []GlobalFactor, labor LaborType, adjustment TimeAdjustment) (FactorContext, error) {
	key := contextKey(profile, factors, labor, adjustment)

	c.mu.Lock()
	fc, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return fc, nil
	}

	fc, err := ResolveContext(profile, factors, labor, adjustment)
	if err != nil {
		return FactorContext{}, err
	}

	c.mu.Lock()
	c.entries[key] = fc
	c.mu.Unlock()
	return fc, nil
}

// Len reports the number of cached contexts.
func (c *ContextCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// contextKey hashes every input that influences the resolved context.
func contextKey(profile *BuildingProfile, factors []GlobalFactor, labor LaborType, adjustment TimeAdjustment) string {
	h := sha256.New()
	var buf [8]byte
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}

	for _, f := range activeFactors(factors) {
		writeInt(f.ID)
		writeFloat(f.Multiplier)
	}
	_, _ = h.Write([]byte{0})
	if profile != nil {
		writeInt(profile.ID)
		_, _ = h.Write([]byte(profile.BuildingType))
		writeFloat(profile.TimeMultiplier)
		writeFloat(profile.AccessibilityMultiplier)
	}
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(labor))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(adjustment))

	return hex.EncodeToString(h.Sum(nil))
}
