// Package thread rebuilds the reply structure of a post's comments.
//
// Build is iterative and runs in two passes (index, then link), so very
// deep threads cannot exhaust the stack.
package thread
