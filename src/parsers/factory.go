package parsers

import (
	"fmt"
	"strings"

	"github.com/gerenciause-netizen/smart-trader/src/parsers/ibkr"
)

// DefaultSource is used when a request names no broker.
const DefaultSource = "ibkr"

func GetParser(source string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", "ibkr":
		return ibkr.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
