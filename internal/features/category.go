package features

import "sync"

// StableCategoryEncoder assigns each distinct category string an
// incrementing integer code on first sight, stable for the lifetime
// of the encoder — callers that need determinism across a training
// run and the prediction run that follows must reuse the same
// encoder (or persist/reload its mapping with the model artifact).
type StableCategoryEncoder struct {
	mu     sync.Mutex
	codes  map[string]float64
	nextID float64
}

// NewStableCategoryEncoder constructs an empty encoder.
func NewStableCategoryEncoder() *StableCategoryEncoder {
	return &StableCategoryEncoder{codes: make(map[string]float64)}
}

// Encode returns category's code, minting a new one on first use.
func (e *StableCategoryEncoder) Encode(category string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if code, ok := e.codes[category]; ok {
		return code
	}
	code := e.nextID
	e.codes[category] = code
	e.nextID++
	return code
}

// Mapping returns a snapshot of the category→code table, persisted
// alongside the model artifact so prediction-time encoding matches
// training-time encoding exactly.
func (e *StableCategoryEncoder) Mapping() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float64, len(e.codes))
	for k, v := range e.codes {
		out[k] = v
	}
	return out
}

// LoadStableCategoryEncoder rebuilds an encoder from a persisted
// mapping, continuing the counter above the highest seen code.
func LoadStableCategoryEncoder(mapping map[string]float64) *StableCategoryEncoder {
	e := NewStableCategoryEncoder()
	for k, v := range mapping {
		e.codes[k] = v
		if v+1 > e.nextID {
			e.nextID = v + 1
		}
	}
	return e
}

var _ CategoryEncoder = (*StableCategoryEncoder)(nil)
