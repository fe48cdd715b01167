// Package fetch loads pages and assets from the blog with a classified retry policy.
//
// Every attempt's failure is classified into a Kind. Rate limiting (429)
// and generic failures are retried on the same Session after a linear
// backoff. A 400 or 500 answer is taken as a sign that the session carries
// a stale bot-challenge credential: the Session is replaced with a fresh one
// before the backoff sleep, and the replacement is returned to the caller so
// that later fetches keep using it.
//
// Invalid URLs fail immediately without touching the network.
package fetch
