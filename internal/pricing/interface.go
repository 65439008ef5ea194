package pricing

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/poolworks/navengine/internal/types"
)

// ErrNoQuote is returned when the conversion service has no usable price for
// a token pair. Read-only valuation treats it as unavailability; issuance
// with a non-base input treats it as a hard failure.
var ErrNoQuote = errors.New("no price quote available")

// Converter translates token amounts into another token's units.
//
// Amounts are signed raw integer amounts in the source token's native
// decimals; results are in the target token's native decimals. Implementations
// must return ErrNoQuote (possibly wrapped) when a pair cannot be priced.
type Converter interface {
	// Convert prices a single signed amount of token in target units.
	Convert(ctx context.Context, token types.AssetID, amount sdkmath.Int, target types.AssetID) (sdkmath.Int, error)

	// ConvertBatch prices several tokens against one target in a single
	// round trip. The result slice is index-aligned with the input.
	ConvertBatch(ctx context.Context, entries []types.PositionEntry, target types.AssetID) ([]sdkmath.Int, error)
}
