package trace

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// snapshotPreviewLength caps the visible-text preview of a page snapshot.
const snapshotPreviewLength = 200

// DigestSnapshot reduces a frame-snapshot payload to the page title and a
// trimmed preview of its visible text. Undigestible HTML yields an empty
// digest rather than an error; the snapshot still marks page state in time.
func DigestSnapshot(event *FrameSnapshotEvent) PageSnapshot {
	snapshot := PageSnapshot{TS: event.TS, FrameURL: event.FrameURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(event.HTML))
	if err != nil {
		return snapshot
	}

	snapshot.Title = strings.TrimSpace(doc.Find("title").First().Text())

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if runes := []rune(text); len(runes) > snapshotPreviewLength {
		text = string(runes[:snapshotPreviewLength]) + "…"
	}
	snapshot.Preview = text

	return snapshot
}
