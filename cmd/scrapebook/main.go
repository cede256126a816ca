// Package main provides the entry point for the scrapebook CLI.
//
// scrapebook collects web scraping techniques behind one command line:
// reading HTML tables, fetching pages with a cookie-keeping session,
// rendering pages in a real browser and replaying scripted browser
// sessions (recipes).
//
// Usage:
//
//	scrapebook tables <url>...
//	scrapebook fetch <url>...
//	scrapebook browse <url>...
//	scrapebook run <recipe>...
//
// See --help for all available options.
package main

// main is the entry point for scrapebook.
func main() {
	Execute()
}
