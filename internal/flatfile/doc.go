// Package flatfile parses the fixed-format export written by the legacy macro
// system.
//
// An export is a sequence of sections. Each section starts with a header line
//
//	DECL(<code>) [ADD] <field1> <field2> ...
//
// followed, eventually, by a line containing only END. Every non-blank line
// after END is a data row whose i-th token fills the i-th declared field. A
// blank line closes the section; rows seen outside a section are ignored.
//
// Tokens are split on runs of spaces and tabs outside double quotes. Quotes
// are never part of a token, \" inside quotes is a literal quote, and a
// quoted empty token ("") is kept so that columns stay aligned.
package flatfile
