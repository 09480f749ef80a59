package router

import (
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"

	"alphaRouter/internal/metrics"
	"alphaRouter/internal/model"
)

// SplitResult is the best combination of route quotes for a request.
type SplitResult struct {
	Quote                      model.Amount
	QuoteGasAdjusted           model.Amount
	EstimatedGasUsed           uint64
	EstimatedGasUsedQuoteToken model.Amount
	EstimatedGasUsedUSD        model.Amount
	Routes                     []model.RouteQuote
}

// BestSwapRoute searches combinations of gas-adjusted quotes whose percents
// sum to 100, using between MinSplits and MaxSplits distinct routes that do
// not share a pool. Exact input maximizes the summed gas-adjusted output,
// exact output minimizes the summed gas-adjusted input. Equal totals prefer
// fewer routes. It returns nil when no valid combination exists.
func BestSwapRoute(amount model.Amount, quotes []model.RouteQuote, tradeType model.TradeType, cfg Config, logger *zap.Logger) *SplitResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()
	defer func() { metrics.SplitSearchDuration.Observe(time.Since(start).Seconds()) }()

	byPercent := make(map[int][]*model.RouteQuote)
	for i := range quotes {
		q := &quotes[i]
		if q.Percent <= 0 || q.Percent > 100 {
			continue
		}
		if cfg.ForceMixedRoutes && q.Route.Protocol != model.ProtocolMixed {
			continue
		}
		byPercent[q.Percent] = append(byPercent[q.Percent], q)
	}
	percents := make([]int, 0, len(byPercent))
	for p, list := range byPercent {
		sort.SliceStable(list, func(i, j int) bool { return list[i].BetterThan(list[j]) })
		if len(list) > maxQuotesPerPercent {
			byPercent[p] = list[:maxQuotesPerPercent]
		}
		percents = append(percents, p)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(percents)))
	if len(percents) == 0 {
		return nil
	}

	minSplits, maxSplits := cfg.MinSplits, cfg.MaxSplits
	if minSplits < 1 {
		minSplits = 1
	}
	if maxSplits < minSplits {
		maxSplits = minSplits
	}

	var (
		best      []*model.RouteQuote
		bestTotal *big.Int
		chosen    = make([]*model.RouteQuote, 0, maxSplits)
	)
	better := func(total *big.Int, n int) bool {
		if bestTotal == nil {
			return true
		}
		cmp := total.Cmp(bestTotal)
		if cmp == 0 {
			return n < len(best)
		}
		if tradeType == model.ExactInput {
			return cmp > 0
		}
		return cmp < 0
	}

	// Percents are taken in descending order. Within one percent the quote
	// index only increases, so every combination is visited once.
	var search func(pi, qi, remaining int, total *big.Int)
	search = func(pi, qi, remaining int, total *big.Int) {
		if remaining == 0 {
			if len(chosen) >= minSplits && better(total, len(chosen)) {
				best = append(best[:0], chosen...)
				bestTotal = new(big.Int).Set(total)
			}
			return
		}
		if len(chosen) == maxSplits {
			return
		}
		for i := pi; i < len(percents); i++ {
			p := percents[i]
			if p > remaining {
				continue
			}
			list := byPercent[p]
			j := 0
			if i == pi {
				j = qi
			}
			for ; j < len(list); j++ {
				q := list[j]
				if conflicts(chosen, q) {
					continue
				}
				chosen = append(chosen, q)
				search(i, j+1, remaining-p, new(big.Int).Add(total, q.QuoteAdjustedForGas.Raw))
				chosen = chosen[:len(chosen)-1]
			}
		}
	}
	search(0, 0, 100, new(big.Int))

	if best == nil {
		logger.Info("no split satisfies the constraints",
			zap.Int("percents", len(percents)),
			zap.Int("min_splits", minSplits),
			zap.Int("max_splits", maxSplits),
		)
		return nil
	}

	routes := make([]model.RouteQuote, len(best))
	for i, q := range best {
		routes[i] = *q
	}
	return summarize(amount, routes, logger)
}

func conflicts(chosen []*model.RouteQuote, q *model.RouteQuote) bool {
	for _, c := range chosen {
		if c.Route.ID() == q.Route.ID() || c.Route.SharesPool(q.Route) {
			return true
		}
	}
	return false
}

// summarize fixes rounding so the route amounts add up to the request, sums
// the totals and orders routes by amount, largest first.
func summarize(amount model.Amount, routes []model.RouteQuote, logger *zap.Logger) *SplitResult {
	sum := new(big.Int)
	for _, r := range routes {
		sum.Add(sum, r.Amount.Raw)
	}
	if missing := new(big.Int).Sub(amount.Raw, sum); missing.Sign() != 0 {
		last := &routes[len(routes)-1]
		last.Amount = model.NewAmount(last.Amount.Asset, new(big.Int).Add(last.Amount.Raw, missing))
		logger.Debug("assigned rounding remainder", zap.String("remainder", missing.String()), zap.String("route", last.Route.String()))
	}

	res := &SplitResult{
		Quote:                      model.ZeroAmount(routes[0].Quote.Asset),
		QuoteGasAdjusted:           model.ZeroAmount(routes[0].QuoteAdjustedForGas.Asset),
		EstimatedGasUsedQuoteToken: model.ZeroAmount(routes[0].GasCostInToken.Asset),
		EstimatedGasUsedUSD:        model.ZeroAmount(routes[0].GasCostInUSD.Asset),
	}
	for _, r := range routes {
		res.Quote = res.Quote.Add(r.Quote)
		res.QuoteGasAdjusted = res.QuoteGasAdjusted.Add(r.QuoteAdjustedForGas)
		res.EstimatedGasUsed += r.GasEstimate
		res.EstimatedGasUsedQuoteToken = res.EstimatedGasUsedQuoteToken.Add(r.GasCostInToken)
		res.EstimatedGasUsedUSD = res.EstimatedGasUsedUSD.Add(r.GasCostInUSD)
	}
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].Amount.Cmp(routes[j].Amount) > 0 })
	res.Routes = routes
	return res
}
