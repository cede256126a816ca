// Package pipeline runs the steps that turn one target URL into a
// model.Result.
//
// A page is first loaded, over HTTP (FetchStep), from a local file
// (FileStep) or in a browser (RenderStep, RecipeStep). Later steps read
// the page source the loader left in the result: TablesStep parses tables
// into frames, LinesStep keeps the first lines of the body, FindStep and
// LinksStep query elements and links.
//
// BatchProcessor runs a fresh pipeline per URL with bounded concurrency
// using errgroup and returns the results in input order.
package pipeline
