// Package callback is the codec for the selection token that ties the
// timeframe button press back to the symbol it was offered for. The token
// is the only state carried between the two interaction steps; the bot
// keeps no per-user session.
package callback

import (
	"fmt"
	"strings"

	"github.com/cryptomind/analyst/models"
)

const delimiter = "|"

// Selection is the decoded symbol+timeframe pair.
type Selection struct {
	Symbol    string
	Timeframe string
}

// Encode packs a symbol and timeframe into a callback token.
func Encode(symbol, timeframe string) string {
	return symbol + delimiter + timeframe
}

// Decode unpacks a callback token. Fails with models.ErrBadToken unless
// the token contains exactly one delimiter and two non-empty parts.
func Decode(token string) (Selection, error) {
	parts := strings.Split(token, delimiter)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Selection{}, fmt.Errorf("%w: %q", models.ErrBadToken, token)
	}
	return Selection{Symbol: parts[0], Timeframe: parts[1]}, nil
}
