package upi

import (
	"fmt"
	"strconv"
	"strings"

	"gtotrainer/internal/deck"
)

// Node addresses are the root marker followed by ":"-delimited tokens.
// Action tokens are "f", "c" and "b<total>"; a street transition
// appends the dealt card, e.g. "r:c:b30:c:6h".
const (
	// RootNode addresses the root of a loaded tree.
	RootNode = "r"

	// pathDelim separates node path tokens.
	pathDelim = ":"
)

// TokenKind tags an ActionToken.
type TokenKind uint8

const (
	TokenFold TokenKind = iota
	TokenCheckCall
	TokenBet
)

// ActionToken is the typed form of a solver action token. Tokens are
// parsed once at the protocol boundary so nothing downstream works
// with raw strings.
type ActionToken struct {
	Kind TokenKind

	// Total is the acting side's cumulative investment (counted from
	// the tree root) after a bet or raise. Only set for TokenBet.
	Total int
}

// ParseActionToken parses a node path action token.
func ParseActionToken(s string) (ActionToken, error) {
	switch {
	case s == "f":
		return ActionToken{Kind: TokenFold}, nil
	case s == "c":
		return ActionToken{Kind: TokenCheckCall}, nil
	case strings.HasPrefix(s, "b"):
		total, err := strconv.Atoi(s[1:])
		if err != nil || total <= 0 {
			return ActionToken{}, fmt.Errorf("invalid bet token %q", s)
		}
		return ActionToken{Kind: TokenBet, Total: total}, nil
	default:
		return ActionToken{}, fmt.Errorf("unknown action token %q", s)
	}
}

// String renders the token in node path form: "f", "c" or "b<total>".
func (t ActionToken) String() string {
	switch t.Kind {
	case TokenFold:
		return "f"
	case TokenCheckCall:
		return "c"
	case TokenBet:
		return "b" + strconv.Itoa(t.Total)
	default:
		return "?"
	}
}

// Label renders the token for display.
func (t ActionToken) Label() string {
	switch t.Kind {
	case TokenFold:
		return "fold"
	case TokenCheckCall:
		return "check/call"
	case TokenBet:
		return fmt.Sprintf("bet %d", t.Total)
	default:
		return "unknown"
	}
}

// ChildNode returns the address of the child reached by appending
// token to parent.
func ChildNode(parent, token string) string {
	return parent + pathDelim + token
}

// LastToken returns the final token of a node address.
func LastToken(node string) string {
	if i := strings.LastIndex(node, pathDelim); i >= 0 {
		return node[i+1:]
	}
	return node
}

// isCardToken reports whether a path token is a street-transition card
// rather than an action. Card tokens are exactly two characters and
// never collide with "f", "c" or "b<n>".
func isCardToken(s string) bool {
	if len(s) != 2 {
		return false
	}
	_, err := deck.ParseCard(s)
	return err == nil
}

// Investments replays a node path and returns the cumulative chips
// each side has committed since the tree root. The solver encodes bet
// sizes as cumulative totals, so turning a new bet token into chips
// requires the acting side's replayed investment: the increment is the
// token total minus that investment.
//
// The out-of-position side acts first on every street: action starts
// with it at the root and returns to it after each card token. A call
// levels the acting side with its opponent; a bet sets the acting
// side's total outright; a fold moves nothing.
func Investments(path string) (oop, ip int, err error) {
	tokens := strings.Split(path, pathDelim)
	if tokens[0] != RootNode {
		return 0, 0, fmt.Errorf("node path %q does not start at the root", path)
	}

	oopToAct := true
	for _, tok := range tokens[1:] {
		if isCardToken(tok) {
			oopToAct = true
			continue
		}
		action, perr := ParseActionToken(tok)
		if perr != nil {
			return 0, 0, fmt.Errorf("node path %q: %w", path, perr)
		}
		switch action.Kind {
		case TokenCheckCall:
			if oopToAct {
				oop = ip
			} else {
				ip = oop
			}
		case TokenBet:
			if oopToAct {
				oop = action.Total
			} else {
				ip = action.Total
			}
		case TokenFold:
			// No chips move on a fold.
		}
		oopToAct = !oopToAct
	}
	return oop, ip, nil
}
