package middleware

import (
	"net/http"

	goGate "github.com/MrEthical07/goGate"
)

// Edge guards the public site with a token gate.
func Edge(gate *goGate.TokenGate, opts Options) func(http.Handler) http.Handler {
	return Guard(gate, opts)
}
