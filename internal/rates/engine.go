// Package rates derives exchange rates from the in-process snapshot
// and exposes the lookup contract consumed by the HTTP layer.
package rates

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/petitolabs/forex-proxy/internal/models"
)

var (
	// ErrServiceUnavailable means the snapshot has not been
	// initialized yet (cold start).
	ErrServiceUnavailable = errors.New("rates not available yet")
	// ErrPairNotFound means the snapshot holds no path to the
	// requested pair.
	ErrPairNotFound = errors.New("pair not found")
)

// crossDivisionPrecision bounds the decimal places kept by the
// cross-rate division, comfortably above the 18 significant digits
// the store round-trip preserves.
const crossDivisionPrecision = 32

// Snapshot supplies the current rate table.
type Snapshot interface {
	GetRates() ([]models.Rate, bool)
}

// Engine answers any ordered currency pair from the snapshot: direct
// lookup first, then cross-rate composition through USD.
type Engine struct {
	snapshot Snapshot
}

// NewEngine creates an engine over the given snapshot.
func NewEngine(snapshot Snapshot) *Engine {
	return &Engine{snapshot: snapshot}
}

// Get resolves the rate for an ordered pair.
func (e *Engine) Get(pair models.Pair) (models.Rate, error) {
	if pair.From == pair.To {
		return models.Rate{
			Pair:      pair,
			Price:     decimal.NewFromInt(1),
			Timestamp: time.Now(),
		}, nil
	}

	table, ok := e.snapshot.GetRates()
	if !ok {
		return models.Rate{}, ErrServiceUnavailable
	}

	byPair := make(map[models.Pair]models.Rate, len(table))
	for _, r := range table {
		byPair[r.Pair] = r
	}

	if rate, ok := byPair[pair]; ok {
		return rate, nil
	}

	return crossViaUSD(byPair, pair)
}

// crossViaUSD composes price(USD,to) / price(USD,from). This is what
// keeps EUR/JPY answerable even if only USD-relative rows survived a
// partial upstream response.
func crossViaUSD(byPair map[models.Pair]models.Rate, pair models.Pair) (models.Rate, error) {
	usdFrom, okFrom := byPair[models.Pair{From: models.USD, To: pair.From}]
	usdTo, okTo := byPair[models.Pair{From: models.USD, To: pair.To}]
	if !okFrom || !okTo {
		return models.Rate{}, ErrPairNotFound
	}
	if usdFrom.Price.IsZero() {
		return models.Rate{}, ErrPairNotFound
	}

	ts := usdFrom.Timestamp
	if usdTo.Timestamp.After(ts) {
		ts = usdTo.Timestamp
	}

	return models.Rate{
		Pair:      pair,
		Price:     usdTo.Price.DivRound(usdFrom.Price, crossDivisionPrecision),
		Timestamp: ts,
	}, nil
}
