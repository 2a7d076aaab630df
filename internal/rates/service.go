package rates

import (
	"errors"
	"fmt"

	"github.com/petitolabs/forex-proxy/internal/models"
)

// ErrLookupFailed is the single error the HTTP layer sees. Collapsing
// cold-cache and unknown-pair into one failure keeps operational state
// out of client responses; operators tell them apart via logs.
var ErrLookupFailed = errors.New("rate lookup failed")

// Service is the thin facade between the HTTP layer and the engine.
type Service struct {
	engine *Engine
}

// NewService creates the facade.
func NewService(engine *Engine) *Service {
	return &Service{engine: engine}
}

// Get resolves a rate, mapping every engine error to ErrLookupFailed.
func (s *Service) Get(pair models.Pair) (models.Rate, error) {
	rate, err := s.engine.Get(pair)
	if err != nil {
		return models.Rate{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	return rate, nil
}
