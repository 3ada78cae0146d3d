package diagnose

import "regexp"

// Category classifies an issue by its failure mode.
type Category string

const (
	CategoryTimeout             Category = "Timeout"
	CategoryAssertionFailure    Category = "Assertion Failure"
	CategoryElementNotFound     Category = "Element Not Found"
	CategoryNavigationFailure   Category = "Navigation Failure"
	CategoryNetworkError        Category = "Network Error"
	CategoryServerError         Category = "Server Error"
	CategoryDOMDetachment       Category = "DOM Detachment"
	CategoryJavaScriptError     Category = "JavaScript Error"
	CategoryPermissionDenied    Category = "Permission Denied"
	CategoryBrowserCrash        Category = "Browser Crash"
	CategoryStrictModeViolation Category = "Strict Mode Violation"
)

// criticalCategories point at the application or test itself rather than
// the environment; they outrank everything else when picking the primary
// diagnosis.
var criticalCategories = map[Category]bool{
	CategoryAssertionFailure: true,
	CategoryServerError:      true,
	CategoryBrowserCrash:     true,
}

// Critical reports whether the category belongs to the critical subset.
func (c Category) Critical() bool {
	return criticalCategories[c]
}

type signature struct {
	pattern     *regexp.Regexp
	category    Category
	explanation string
	remedy      string
}

// signatures is matched in order against every textual signal; the first
// match wins, so specific patterns must come before generic ones.
var signatures = []signature{
	// Locator resolved ambiguously: very specific wording, match first.
	{
		pattern:     regexp.MustCompile(`(?i)strict mode violation`),
		category:    CategoryStrictModeViolation,
		explanation: "A locator matched more than one element",
		remedy:      "Narrow the locator with a role, text, or nth filter until it resolves to exactly one element",
	},
	// Crashes take priority over whatever error text surrounds them.
	{
		pattern:     regexp.MustCompile(`(?i)target crashed|page crashed|browser has (?:been )?(?:closed|disconnected)`),
		category:    CategoryBrowserCrash,
		explanation: "The browser or one of its pages crashed mid-run",
		remedy:      "Check browser version and memory limits; capture video on retry to see the crash point",
	},
	// Assertions before timeouts: a timed-out expect() is an assertion
	// failure, not an environment problem.
	{
		pattern:     regexp.MustCompile(`(?i)assertionerror|assertion failed|\bexpect\s*\(|\bexpected\b`),
		category:    CategoryAssertionFailure,
		explanation: "A test assertion did not hold",
		remedy:      "Compare the expected and received values in the runner output against the nearest screenshot",
	},
	{
		pattern:     regexp.MustCompile(`(?i)timed?[ -]?out|timeout.*exceeded`),
		category:    CategoryTimeout,
		explanation: "An operation exceeded its time budget",
		remedy:      "Check what the page was waiting on at this timestamp; slow responses and missing elements both surface as timeouts",
	},
	{
		pattern:     regexp.MustCompile(`(?i)(?:element|selector|locator).*not found|no (?:element|node) (?:found|matches)|could not find (?:an )?element|unable to locate|waiting for (?:selector|locator)`),
		category:    CategoryElementNotFound,
		explanation: "A selector never matched anything on the page",
		remedy:      "Verify the selector against the page snapshot nearest this time; the element may render later or under a different name",
	},
	{
		pattern:     regexp.MustCompile(`(?i)not attached to|detached from (?:the )?(?:dom|document)|stale element`),
		category:    CategoryDOMDetachment,
		explanation: "The element left the DOM between lookup and use",
		remedy:      "Re-query immediately before acting, or wait for the re-render that replaces the node to settle",
	},
	// Backend failures before generic network noise.
	{
		pattern:     regexp.MustCompile(`(?i)status(?: code)? 5\d\d|5\d\d \((?:internal server error|bad gateway|service unavailable|gateway timeout)\)|internal server error`),
		category:    CategoryServerError,
		explanation: "The application backend returned a server error",
		remedy:      "Check the application logs around this timestamp; the failure starts server-side, not in the test",
	},
	{
		pattern:     regexp.MustCompile(`(?i)navigation (?:to .+ )?(?:failed|interrupted)|err_name_not_resolved|err_aborted|frame was detached`),
		category:    CategoryNavigationFailure,
		explanation: "A page navigation did not complete",
		remedy:      "Confirm the target URL is reachable from the test environment and was not redirected or aborted mid-flight",
	},
	{
		pattern:     regexp.MustCompile(`(?i)net::err_|econnrefused|econnreset|failed to fetch|networkerror|fetch failed|err_internet_disconnected`),
		category:    CategoryNetworkError,
		explanation: "A network request failed outright",
		remedy:      "Check connectivity to the service under test; refused connections usually mean it was not up yet",
	},
	{
		pattern:     regexp.MustCompile(`(?i)permission denied|access denied|notallowederror|not allowed by the user agent|eacces`),
		category:    CategoryPermissionDenied,
		explanation: "The browser or OS denied a capability the page requested",
		remedy:      "Grant the permission in the browser context options, or stub the API the page is calling",
	},
	// The generic catch-all for uncaught page script errors, matched last.
	{
		pattern:     regexp.MustCompile(`(?i)uncaught (?:exception|error)|typeerror:|referenceerror:|syntaxerror:|rangeerror:|undefined is not a function|cannot read propert|null is not an object`),
		category:    CategoryJavaScriptError,
		explanation: "Page JavaScript threw an uncaught error",
		remedy:      "Open the stack in the page error detail; the error is in application code, not the test",
	},
}

// suppressions filter known-noisy text before signature matching: analytics
// beacons, dev-server chatter, and similar third-party background failures
// that never explain a test result.
var suppressions = []*regexp.Regexp{
	regexp.MustCompile(`(?i)google-analytics|googletagmanager|\bgtag\b`),
	regexp.MustCompile(`(?i)doubleclick\.net`),
	regexp.MustCompile(`(?i)hotjar`),
	regexp.MustCompile(`(?i)sentry\.io|ingest\.sentry`),
	regexp.MustCompile(`(?i)favicon\.ico.*(?:404|not found)|(?:404|not found).*favicon\.ico`),
	regexp.MustCompile(`(?i)\[vite\]|vite .*connect`),
	regexp.MustCompile(`(?i)\[webpack-dev-server\]|\[hmr\]`),
	regexp.MustCompile(`(?i)download the react devtools`),
}

// recoveryMarkers signal that a retry after a transient failure went on to
// succeed. An issue followed by one of these is demoted to recovered.
var recoveryMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry succeeded`),
	regexp.MustCompile(`(?i)succeeded after \d+ attempts?`),
	regexp.MustCompile(`(?i)recovered after retry`),
}

// matchSignature returns the first signature matching text.
func matchSignature(text string) (signature, bool) {
	for _, sig := range signatures {
		if sig.pattern.MatchString(text) {
			return sig, true
		}
	}
	return signature{}, false
}

// suppressed reports whether text is on the known-noise list.
func suppressed(text string) bool {
	for _, pattern := range suppressions {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// isRecoveryMarker reports whether text announces a successful retry.
func isRecoveryMarker(text string) bool {
	for _, pattern := range recoveryMarkers {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
