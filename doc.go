// Package rofireddit fetches the hot feed of a subreddit for a menu-driven
// launcher such as rofi or dmenu.
//
// # Overview
//
// A Session authenticates as an application with Reddit's OAuth2
// client-credentials grant, caches the resulting bearer token on disk and
// requests a single page of a subreddit's hot listings. Every response is
// reduced to a types.SubredditAccess outcome so the caller can tell a private
// or quarantined community apart from one that does not exist.
//
// # Quick Start
//
//	session, err := rofireddit.NewSession(&rofireddit.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		ClientName:   "linux:rofi-reddit:0.1 by /u/yourusername",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	access, page, err := session.GetHotListings(ctx, "golang")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if access != types.AccessOK {
//		fmt.Println(access.Message())
//		return
//	}
//	for _, listing := range page.Items {
//		fmt.Println(listing.Title)
//	}
//
// # Token Lifecycle
//
// The first call resolves a token: the cached one if the cache file exists,
// otherwise a fresh one from https://www.reddit.com/api/v1/access_token which
// is then written back to the cache. Failing to write the cache is logged and
// otherwise ignored.
//
// Reddit does not report token expiry on the listings endpoint in a way that
// can be told apart from other refusals, so a 401 and any 403 without a known
// reason are both treated as an expired token. The session then fetches a new
// token and retries exactly once. A second refusal is returned to the caller
// as AccessExpiredToken.
//
// # Outcomes
//
//	200                          AccessOK
//	404                          AccessDoesNotExist
//	401                          AccessExpiredToken
//	403 {"reason":"private"}     AccessPrivate
//	403 {"reason":"quarantined"} AccessQuarantined
//	403 otherwise                AccessExpiredToken
//	anything else                AccessUnknown
//
// Outcomes other than AccessOK are not errors. GetHotListings returns an error
// only when the token endpoint rejects the credentials or no response is
// received at all.
//
// # Caching
//
// The token cache lives at $XDG_CACHE_HOME/rofi-reddit/access_token by default.
// It is written atomically with mode 0600, but two processes racing on an
// empty cache may each fetch a token; the last write wins.
//
// # Rate Limiting
//
// Listing requests pass through a client-side limiter (60 requests per minute,
// burst of 10 by default). When Reddit sends Retry-After, or reports that the
// current window is nearly used up, the next request is delayed. Requests are
// never retried because of rate limiting.
//
// # Logging
//
// Pass a *slog.Logger in Config.Logger to receive diagnostics. Each
// GetHotListings call logs under its own fetch_id.
package rofireddit
