// Package lexer defines the participle stateful lexer rules for the
// source language (spec §6): identifiers, integer literals, the fixed
// keyword/punctuation/operator set, and line comments starting with
// "#" or "//".
package lexer

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes source text into the lexical categories consumed by
// the participle grammar in internal/parser. Rule order matters:
// comments are tried before punctuation so that "//" is not lexed as
// two "/" tokens, and "<-" is tried before the relational operators so
// that it is not lexed as "<" followed by "-".
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `(#|//)[^\n]*`},
		{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9]*`},
		{Name: "Number", Pattern: `[0-9]+`},
		{Name: "Arrow", Pattern: `<-`},
		{Name: "RelOp", Pattern: `==|!=|<=|>=|<|>`},
		{Name: "Punct", Pattern: `[;,(){}\[\].+\-*/]`},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	},
})
