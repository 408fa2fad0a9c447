package engineadapter

import (
	"fmt"
	"os"
	"os/exec"
)

// commonEnginePaths mirrors the search locations a Stockfish-like UCI
// engine is typically installed at, grounded in
// ruziba3vich-stockfish_integrator/main.go's findStockfish.
var commonEnginePaths = []string{
	"stockfish",
	"/usr/games/stockfish",
	"/usr/bin/stockfish",
	"/opt/homebrew/bin/stockfish",
	"/usr/local/bin/stockfish",
}

// FindEnginePath resolves the UCI engine binary: envVar (CHESSTTY_ENGINE) if
// set, else the first common install location found on PATH, per spec §6.
func FindEnginePath(envVar string) (string, error) {
	if path := os.Getenv(envVar); path != "" {
		return path, nil
	}
	for _, candidate := range commonEnginePaths {
		if p, err := exec.LookPath(candidate); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("engineadapter: no UCI engine found; set %s", envVar)
}
