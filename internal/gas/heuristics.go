package gas

import (
	"alphaRouter/internal/chains"
	"alphaRouter/internal/model"
)

// V3Model charges a base cost, a cost per hop and a cost per initialized tick
// crossed, with at least one tick assumed.
type V3Model struct {
	gas    chains.GasCosts
	pricer *Pricer
}

func (m *V3Model) Estimate(q *model.RouteQuote) model.GasEstimate {
	return m.pricer.Convert(v3Units(m.gas, len(q.Route.Pools), q.TicksCrossed()))
}

func v3Units(gas chains.GasCosts, hops int, ticks uint64) uint64 {
	if hops == 0 {
		return 0
	}
	if ticks < 1 {
		ticks = 1
	}
	hopCost := gas.V3CostPerHop * uint64(hops)
	if hops == 1 {
		hopCost += gas.V3SingleHopOverhead
	}
	return gas.V3BaseSwapCost + hopCost + gas.V3CostPerInitTick*ticks
}

// V2Model charges a base swap cost plus a cost for every extra hop.
type V2Model struct {
	gas    chains.GasCosts
	pricer *Pricer
}

func (m *V2Model) Estimate(q *model.RouteQuote) model.GasEstimate {
	return m.pricer.Convert(v2Units(m.gas, len(q.Route.Pools)))
}

func v2Units(gas chains.GasCosts, hops int) uint64 {
	if hops == 0 {
		return 0
	}
	return gas.V2BaseSwapCost + gas.V2CostPerExtraHop*uint64(hops-1)
}

// MixedModel prices the concentrated-liquidity hops with the V3 heuristic and
// the constant-product hops with the V2 heuristic.
type MixedModel struct {
	gas    chains.GasCosts
	pricer *Pricer
}

func (m *MixedModel) Estimate(q *model.RouteQuote) model.GasEstimate {
	v3Hops, v2Hops := 0, 0
	for _, pool := range q.Route.Pools {
		if pool.Kind() == model.ProtocolV2 {
			v2Hops++
		} else {
			v3Hops++
		}
	}
	return m.pricer.Convert(v3Units(m.gas, v3Hops, q.TicksCrossed()) + v2Units(m.gas, v2Hops))
}
