// Package all imports and initializes all built-in tools.
// Import this package to register all tools.
package all

import (
	// Import all tool packages to trigger their init() functions
	_ "github.com/quantfolio/quantfolio/pkg/tools/market"
	_ "github.com/quantfolio/quantfolio/pkg/tools/orders"
	_ "github.com/quantfolio/quantfolio/pkg/tools/portfolio"
)
