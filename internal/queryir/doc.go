// Package queryir is the tag query language used to select refs, for
// example by the "query" field of pull and push link configs.
//
// A query is a boolean expression over tag terms:
//
//	science              refs tagged science or any descendant of it
//	+user/alice          refs tagged +user/alice (visibility is exact)
//	@remote              refs from origin @remote or one nested beneath it
//	science@remote       both of the above
//	!science             negation
//	a:b                  conjunction
//	a|b                  disjunction
//	(a|b):!c             grouping
//	*                    every ref
//
// ":" binds tighter than "|", and "!" tighter than both.
//
// ARCHITECTURE:
//
//	[query text] → Parse → [Query IR] → Match (in memory)
//	                                  → querysql (SQLite WHERE clause)
//
// Query is a sealed interface: only the node types in this package
// implement it, so backends can switch over them exhaustively.
//
// Both backends must agree. Match is the reference semantics and the SQL
// compiler is tested against it.
package queryir
