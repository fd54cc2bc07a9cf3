package pricing

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Request is everything one calculation run needs. The catalog slice, profile
// and factors are loaded by the caller before the engine runs.
type Request struct {
	Catalog       *Catalog
	Profile       *BuildingProfile
	GlobalFactors []GlobalFactor
	Items         []Item
	Settings      Settings
}

// Calculation is the full output of one run.
type Calculation struct {
	Context        FactorContext    `json:"context"`
	Items          []CalculatedItem `json:"items"`
	Result         Result           `json:"result"`
	Classification Classification   `json:"classification"`
}

// Engine orchestrates a calculation: resolve the factor context once, compute
// items on a bounded worker pool, aggregate after the join, then classify.
type Engine struct {
	workers    int
	cache      *ContextCache
	classifier *Classifier
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of items computed concurrently. Values below
// one are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithContextCache memoizes factor resolution across calculations.
func WithContextCache(c *ContextCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithThresholds replaces the default classifier thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.classifier = NewClassifier(t) }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workers:    runtime.GOMAXPROCS(0),
		classifier: NewClassifier(DefaultThresholds()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calculate runs the full pipeline. On error no partial calculation is
// returned. When several items fail, the error of the first failing item in
// request order is reported.
func (e *Engine) Calculate(req Request) (*Calculation, error) {
	if req.Catalog == nil {
		return nil, validationError("request", "", "catalog", nil, "catalog is required")
	}
	if len(req.Items) == 0 {
		return nil, validationError("request", "", "items", 0, "at least one item is required")
	}
	if err := req.Settings.Validate(); err != nil {
		return nil, err
	}

	var (
		fc  FactorContext
		err error
	)
	if e.cache != nil {
		fc, err = e.cache.Resolve(req.Profile, req.GlobalFactors, req.Settings.LaborType, req.Settings.TimeAdjustment)
	} else {
		fc, err = ResolveContext(req.Profile, req.GlobalFactors, req.Settings.LaborType, req.Settings.TimeAdjustment)
	}
	if err != nil {
		return nil, err
	}

	items := make([]CalculatedItem, len(req.Items))
	errs := make([]error, len(req.Items))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, item := range req.Items {
		g.Go(func() error {
			comp, variants, materials, rules, err := req.Catalog.itemInputs(item)
			if err != nil {
				errs[i] = err
				return nil
			}
			items[i], errs[i] = CalculateItem(comp, variants, materials, rules, item, fc, req.Settings)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	result, err := Aggregate(items, req.Settings)
	if err != nil {
		return nil, err
	}

	return &Calculation{
		Context:        fc,
		Items:          items,
		Result:         result,
		Classification: e.classifier.Classify(result),
	}, nil
}
