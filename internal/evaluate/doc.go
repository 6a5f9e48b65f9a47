// Package evaluate provides the page evaluators the extraction engine runs
// against: a static Document parsed from fetched HTML and a live chromedp
// Session. Both accept css selectors and, with an "xpath:" prefix, xpath
// expressions.
package evaluate
