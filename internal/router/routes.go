package router

import (
	"alphaRouter/internal/model"
)

// ComputeAllV3Routes returns every path from tokenIn to tokenOut over the
// given pools with at most maxHops hops.
func ComputeAllV3Routes(tokenIn, tokenOut model.Asset, pools []*model.V3Pool, maxHops int) []model.Route {
	generic := make([]model.Pool, len(pools))
	for i, p := range pools {
		generic[i] = p
	}
	return computeAllRoutes(tokenIn, tokenOut, generic, maxHops)
}

// ComputeAllV2Routes is ComputeAllV3Routes for constant-product pairs.
func ComputeAllV2Routes(tokenIn, tokenOut model.Asset, pools []*model.V2Pool, maxHops int) []model.Route {
	generic := make([]model.Pool, len(pools))
	for i, p := range pools {
		generic[i] = p
	}
	return computeAllRoutes(tokenIn, tokenOut, generic, maxHops)
}

// ComputeAllMixedRoutes returns the routes over both pool kinds that use at
// least one pool of each kind.
func ComputeAllMixedRoutes(tokenIn, tokenOut model.Asset, v3 []*model.V3Pool, v2 []*model.V2Pool, maxHops int) []model.Route {
	generic := make([]model.Pool, 0, len(v3)+len(v2))
	for _, p := range v3 {
		generic = append(generic, p)
	}
	for _, p := range v2 {
		generic = append(generic, p)
	}
	all := computeAllRoutes(tokenIn, tokenOut, generic, maxHops)
	mixed := all[:0]
	for _, r := range all {
		if r.Protocol == model.ProtocolMixed {
			mixed = append(mixed, r)
		}
	}
	return mixed
}

// computeAllRoutes walks pools depth first. A pool is used at most once per
// route and no token is visited twice.
func computeAllRoutes(tokenIn, tokenOut model.Asset, pools []model.Pool, maxHops int) []model.Route {
	var (
		routes  []model.Route
		current []model.Pool
		used    = make([]bool, len(pools))
		visited = map[string]bool{tokenIn.Key(): true}
	)

	var walk func(prev model.Asset)
	walk = func(prev model.Asset) {
		if len(current) > 0 && prev.Equal(tokenOut) {
			path := make([]model.Pool, len(current))
			copy(path, current)
			if route, err := model.NewRoute(path, tokenIn, tokenOut); err == nil {
				routes = append(routes, route)
			}
			return
		}
		if len(current) >= maxHops {
			return
		}
		for i, pool := range pools {
			if used[i] || !pool.Involves(prev) {
				continue
			}
			next := model.OtherToken(pool, prev)
			if visited[next.Key()] {
				continue
			}
			used[i] = true
			visited[next.Key()] = true
			current = append(current, pool)
			walk(next)
			current = current[:len(current)-1]
			visited[next.Key()] = false
			used[i] = false
		}
	}
	walk(tokenIn)
	return routes
}
