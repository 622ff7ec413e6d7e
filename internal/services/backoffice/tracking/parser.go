package tracking

import (
	"bytes"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"golang.org/x/net/html"
)

// ErrMarkupChanged indicates the tracking page no longer carries the
// markup the parser knows. Raised so a layout redesign on the courier
// side surfaces as an explicit failure instead of silently empty
// timelines.
var ErrMarkupChanged = apperrors.New(apperrors.CodeCourierMarkupChanged, "tracking page does not match the known courier markup")

// entryClassMarkers are the class names the courier uses for timeline
// rows. "history-item" is the pre-redesign name, kept so a rollback on
// their side does not break us.
var entryClassMarkers = []string{"tracking-event", "history-item"}

// notFoundMarkers appear in the page body when the courier does not
// know the tracking code.
var notFoundMarkers = []string{
	"отправление не найдено",
	"ничего не найдено",
	"заказ не найден",
	"nothing found",
	"not found",
}

// eventDateRe matches the courier's event timestamps: DD.MM.YYYY with
// an optional HH:MM.
var eventDateRe = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})(?:\s+(\d{2}):(\d{2}))?`)

// statusKeywords maps courier status phrases to shipment statuses.
// First match wins, so specific phrases sit above the generic ones:
// "прибыл в сортировочный центр" is transit, a bare "прибыл" is
// arrival at the pickup point.
var statusKeywords = []struct {
	phrase string
	status domain.ShipmentStatus
}{
	{"прибыл в сортировочный центр", domain.ShipmentStatusInTransit},
	{"покинул сортировочный центр", domain.ShipmentStatusInTransit},
	{"передан в доставку", domain.ShipmentStatusInTransit},
	{"в пути", domain.ShipmentStatusInTransit},
	{"in transit", domain.ShipmentStatusInTransit},
	{"доставлен получателю", domain.ShipmentStatusDelivered},
	{"вручен", domain.ShipmentStatusDelivered},
	{"delivered", domain.ShipmentStatusDelivered},
	{"возвращ", domain.ShipmentStatusReturned},
	{"возврат", domain.ShipmentStatusReturned},
	{"returned", domain.ShipmentStatusReturned},
	{"готов к выдаче", domain.ShipmentStatusArrived},
	{"ожидает получения", domain.ShipmentStatusArrived},
	{"ready for pickup", domain.ShipmentStatusArrived},
	{"прибыл", domain.ShipmentStatusArrived},
	{"arrived", domain.ShipmentStatusArrived},
	{"принят", domain.ShipmentStatusRegistered},
	{"зарегистрирован", domain.ShipmentStatusRegistered},
	{"accepted", domain.ShipmentStatusRegistered},
	{"registered", domain.ShipmentStatusRegistered},
}

// ParseTimeline extracts the shipment timeline from a tracking page,
// oldest event first. A page that carries the courier's "not found"
// marker returns CodeTrackingNotFound; a page without any recognizable
// timeline markup returns ErrMarkupChanged.
func ParseTimeline(page []byte) ([]domain.ShipmentEvent, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeCourierMarkupChanged, "parse tracking page: %v", err)
	}

	entries := collectEntries(doc)
	if len(entries) == 0 {
		if pageReportsNotFound(doc) {
			return nil, apperrors.New(apperrors.CodeTrackingNotFound, "courier reports no shipment for this code")
		}
		return nil, ErrMarkupChanged
	}

	events := make([]domain.ShipmentEvent, 0, len(entries))
	for _, entry := range entries {
		event, ok := parseEntry(entry)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	if len(events) == 0 {
		return nil, ErrMarkupChanged
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
	return events, nil
}

// collectEntries walks the document for timeline rows. Matched nodes
// are not descended into, so nested markup cannot double-count.
func collectEntries(doc *html.Node) []*html.Node {
	var entries []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasAnyClass(n, entryClassMarkers) {
			entries = append(entries, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return entries
}

// parseEntry turns one timeline row into a shipment event. Rows
// without a parseable date are dropped: they cannot be ordered or
// deduplicated.
func parseEntry(n *html.Node) (domain.ShipmentEvent, bool) {
	full := collapsedText(n)
	occurredAt, ok := parseEventDate(full)
	if !ok {
		return domain.ShipmentEvent{}, false
	}

	description := textOfClass(n, "status")
	if description == "" {
		description = strings.Join(strings.Fields(eventDateRe.ReplaceAllString(full, " ")), " ")
	}
	if description == "" {
		return domain.ShipmentEvent{}, false
	}

	return domain.ShipmentEvent{
		OccurredAt:  occurredAt,
		Status:      classifyStatus(description),
		Location:    textOfClass(n, "location"),
		Description: description,
	}, true
}

// parseEventDate reads the first DD.MM.YYYY[ HH:MM] timestamp in text.
// The courier publishes wall-clock times without a zone; they are
// recorded as UTC so dedupe keys stay stable across processes.
func parseEventDate(text string) (time.Time, bool) {
	m := eventDateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	hour, minute := 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), true
}

// classifyStatus maps a status phrase to a shipment status. Unknown
// phrases stay Unspecified, which never advances the shipment.
func classifyStatus(text string) domain.ShipmentStatus {
	lowered := strings.ToLower(text)
	for _, kw := range statusKeywords {
		if strings.Contains(lowered, kw.phrase) {
			return kw.status
		}
	}
	return domain.ShipmentStatusUnspecified
}

func pageReportsNotFound(doc *html.Node) bool {
	text := strings.ToLower(collapsedText(doc))
	for _, marker := range notFoundMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// textOfClass returns the collapsed text of the first descendant whose
// class attribute contains marker.
func textOfClass(n *html.Node, marker string) string {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if found != nil {
			return
		}
		if node != n && node.Type == html.ElementNode && classContains(node, marker) {
			found = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	if found == nil {
		return ""
	}
	return collapsedText(found)
}

func hasAnyClass(n *html.Node, markers []string) bool {
	for _, marker := range markers {
		if classContains(n, marker) {
			return true
		}
	}
	return false
}

func classContains(n *html.Node, marker string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, name := range strings.Fields(attr.Val) {
			if strings.Contains(name, marker) {
				return true
			}
		}
	}
	return false
}

// collapsedText flattens a node's text content to single-spaced words.
func collapsedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			b.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
