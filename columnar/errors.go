package columnar

import (
	"fmt"

	"github.com/Polqt/automerge-go/amerr"
)

// errParse is the local sentinel wrapped by every decode failure. It wraps
// amerr.ErrParse, so callers outside this package can match any decode
// failure with errors.Is(err, amerr.ErrParse).
var errParse = fmt.Errorf("columnar: %w", amerr.ErrParse)
