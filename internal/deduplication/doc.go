// Package deduplication finds existing issues that a new bug report may
// duplicate.
//
// # Pipeline
//
// A report's title and reproduction steps are reduced to a short keyword
// query:
//
//  1. ExtractKeywords tokenizes each text into lowercase ASCII alphanumeric
//     runs, drops stop words and single characters, and deduplicates while
//     keeping first-occurrence order (capped at 10 per text).
//  2. Title keywords come first, followed by step keywords not already
//     present; the union is cut to 5 keywords.
//  3. The query goes to a Searcher (the issue tracker). If no keywords were
//     extracted the Searcher is not called and the result is empty.
//
// Each candidate returned is scored against the report title with
// Similarity, a case-insensitive Ratcliff/Obershelp ratio, and tiered:
//
//   - score > 0.7 and the candidate is open: high
//   - otherwise score > 0.5: medium
//   - otherwise: low
//
// Closed candidates can never be high. Results keep the Searcher's ordering;
// the tier is an annotation, not a sort key.
//
// # Errors
//
// The detector performs no I/O of its own. Searcher failures are returned
// wrapped and are not retried. A candidate missing a required field fails
// the call with ErrMalformedCandidate.
//
// # Usage
//
//	detector, err := deduplication.NewDetector(githubClient, deduplication.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	results, err := detector.FindDuplicates(ctx, report.Summary, report.Steps, 0)
//	if err != nil {
//	    return fmt.Errorf("duplicate check failed: %w", err)
//	}
//	if types.AnyHighConfidence(results) {
//	    // require a second confirmation before filing
//	}
package deduplication
