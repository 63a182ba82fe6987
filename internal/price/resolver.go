package price

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MissReason tells apart a symbol no provider knows from one that could not be priced because a
// provider was unreachable.
type MissReason string

const (
	MissUnknown     MissReason = "unknown"
	MissUnavailable MissReason = "unavailable"
)

type MissRecorder interface {
	RecordMiss(reason MissReason)
}

// Resolver tries the crypto provider first, then the stock provider.
type Resolver struct {
	crypto Provider
	stock  Provider
	misses MissRecorder
}

func NewResolver(crypto, stock Provider, misses MissRecorder) *Resolver {
	return &Resolver{crypto: crypto, stock: stock, misses: misses}
}

// Resolve never fails: an unresolved symbol yields a Quote with no price.
func (r *Resolver) Resolve(ctx context.Context, symbol string) Quote {
	unavailable := false

	for _, p := range []struct {
		provider Provider
		source   Source
	}{
		{r.crypto, SourceCrypto},
		{r.stock, SourceStock},
	} {
		if p.provider == nil {
			continue
		}
		q, err := p.provider.Quote(ctx, symbol)
		if err == nil && q.Resolved() {
			q.Source = p.source
			return q
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			unavailable = true
			log.WithField("symbol", symbol).WithField("source", p.source).Warnf("⚠️ Price fetch error: %v", err)
		}
	}

	reason := MissUnknown
	if unavailable {
		reason = MissUnavailable
	}
	log.WithField("symbol", symbol).Debugf("No price for symbol (%s)", reason)
	if r.misses != nil {
		r.misses.RecordMiss(reason)
	}
	return Quote{}
}
