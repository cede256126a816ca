// Package browser drives a real Chromium instance for pages that only
// show their content after JavaScript has run.
//
// Three engines sit behind the same Browser, Page and Element interfaces:
//   - rod: go-rod with its own launcher
//   - chromedp: the Chrome DevTools Protocol through chromedp's exec allocator
//   - playwright: playwright-go driving Chromium
//
// Elements are located with a Selector built by ByCSS, ByID, ByClassName or
// ByTagName. Page.Find waits up to Options.ImplicitWait for the first match,
// Page.FindAll returns whatever is present right now.
//
// Usage:
//
//	b, err := browser.Open(ctx, browser.Options{Engine: browser.EngineRod, Headless: true})
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	page, err := b.NewPage(ctx)
//	if err != nil {
//	    return err
//	}
//	if err := page.Navigate(ctx, "https://example.com/clock"); err != nil {
//	    return err
//	}
//	el, err := page.Find(ctx, browser.ByID("utc"))
//
// Browser.Close may be called more than once. Only the first call does work.
package browser
