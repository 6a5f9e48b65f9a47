// Package extract implements the resilient extraction pipeline: ordered
// selector-chain resolution, page-context validation, pattern-based
// candidate ranking, confidence scoring, value validation, and
// retry-with-environment-mutation.
//
// The pipeline never returns a hard error for anything that happens against
// the page. Selector misses, wrong-page detection, validation failures and
// exhausted retries all surface as a terminal Result carrying full
// diagnostics (method, attempts, candidates considered, checks run). The
// only operations that fail with an error are request construction
// (Request.Compile) and nothing else.
//
// Pipeline order for one attempt:
//
//	page validation -> chain resolution -> script/pattern fallback ->
//	transform -> value validation -> confidence scoring
//
// Page access goes through the Evaluator interface; implementations live in
// internal/evaluate. Retry strategies additionally need the Mutator
// interface, since they change the environment between attempts.
package extract
