// Package fetch provides an HTTP session for scraping static pages.
//
// A Session wraps a resty client with a cookie jar, a browser-like
// User-Agent, per-site headers and cookies, a body-size cap and optional
// robots.txt politeness. Get returns a Page whose body has been decoded to
// UTF-8, which can be queried with CSS selectors, searched for links or
// handed to the htmltable package.
//
// Usage:
//
//	s, err := fetch.NewSession(fetch.WithTimeout(30 * time.Second))
//	if err != nil {
//	    return err
//	}
//	page, err := s.Get(ctx, "https://example.com/clock")
//	if err != nil {
//	    return err
//	}
//	for _, e := range page.Find("time") {
//	    fmt.Println(e.Text)
//	}
//
// Pages are fetched as served. Content rendered by JavaScript is not
// visible here; use the browser package for that.
package fetch
