// Package model defines the data structures shared by the scraping
// packages, the pipeline and the report writers.
//
// This package contains the following main types:
//   - Element: One HTML element as seen by an HTTP session or a browser
//   - Result: Everything collected for a single target URL
//
// The models are serializable to JSON for report output and are kept free
// of library handles (goquery documents, browser pages) so they can be
// stored and printed after the session that produced them is closed.
package model
