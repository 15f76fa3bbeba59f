// Package ratelimit paces outbound calls to external APIs. The document
// publisher runs its page creation and block append requests through a
// sliding window so a long report never trips the service's request
// quota in the first place.
package ratelimit
