// Package pagination assembles complete result sets from the DIP API's
// cursor-based pages.
//
// The API returns at most ~100 documents per response plus an opaque cursor
// for the next page. Pages must be fetched strictly sequentially: page n+1's
// request depends on page n's cursor, so there is no speculative prefetch.
//
// Example usage:
//
//	engine := pagination.NewEngine(dipClient)
//	docs, err := engine.FetchN(ctx, descriptor, 250)
//
// FetchN returns either everything it was asked for (truncating the final
// page), everything the source has if that is less, or an error — never a
// silently short result caused by a mid-pagination failure.
package pagination
