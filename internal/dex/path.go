package dex

import (
	"fmt"

	"alphaRouter/internal/model"
)

// v2FeePathPlaceholder marks a constant-product hop inside a mixed-route path.
const v2FeePathPlaceholder = 8388608

// EncodeRoutePath encodes token/fee hops for the on-chain quoters and router.
// Exact-output paths are encoded from output to input.
func EncodeRoutePath(route model.Route, exactOutput bool) ([]byte, error) {
	if len(route.Pools) == 0 || len(route.Path) != len(route.Pools)+1 {
		return nil, fmt.Errorf("malformed route %s", route.ID())
	}

	tokens := route.Path
	pools := route.Pools
	if exactOutput {
		tokens = reverseAssets(tokens)
		pools = reversePools(pools)
	}

	out := make([]byte, 0, 20+len(pools)*23)
	out = append(out, tokens[0].Address.Bytes()...)
	for i, pool := range pools {
		var fee uint32
		switch p := pool.(type) {
		case *model.V3Pool:
			fee = uint32(p.Fee)
		case *model.V2Pool:
			if route.Protocol != model.ProtocolMixed {
				return nil, fmt.Errorf("constant-product hop in %s path", route.Protocol)
			}
			fee = v2FeePathPlaceholder
		default:
			return nil, fmt.Errorf("unsupported pool type %T", pool)
		}
		out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
		out = append(out, tokens[i+1].Address.Bytes()...)
	}
	return out, nil
}

func reverseAssets(in []model.Asset) []model.Asset {
	out := make([]model.Asset, len(in))
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	return out
}

func reversePools(in []model.Pool) []model.Pool {
	out := make([]model.Pool, len(in))
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	return out
}
