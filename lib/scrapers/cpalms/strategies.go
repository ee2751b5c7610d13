package cpalms

import (
	"context"
	"fldoe-standards/lib/htmlutil"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ResourceStrategy finds the resources on a benchmark page for one page layout.
type ResourceStrategy interface {
	Name() string
	// FindResources returns an empty slice if the layout does not apply.
	FindResources(ctx context.Context, doc *goquery.Document, base *url.URL) []Resource
}

// AccessPointStrategy finds the access points on a benchmark page for one page layout.
type AccessPointStrategy interface {
	Name() string
	FindAccessPoints(ctx context.Context, doc *goquery.Document, base *url.URL) []AccessPoint
}

// DefaultResourceStrategies are ordered from the current layout to the loosest fallback.
func DefaultResourceStrategies() []ResourceStrategy {
	return []ResourceStrategy{
		blockStrategy{name: "related-blocks", selector: "div.classRelatedblock"},
		blockStrategy{name: "legacy-blocks", selector: "div.resource-item, li.resource-item, div.resource"},
		previewAnchorStrategy{},
	}
}

func DefaultAccessPointStrategies() []AccessPointStrategy {
	return []AccessPointStrategy{
		accessPointLinkStrategy{},
		accessPointCodeStrategy{},
		accessPointBlockStrategy{},
	}
}

const typePrefix = "Type:"

// leadingLabel matches the label at the start of `text`, preferring the longest.
func leadingLabel(text string) (ResourceType, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	best := ResourceType("")
	for _, t := range ResourceTypes {
		if strings.HasPrefix(lower, strings.ToLower(string(t))) && len(t) > len(best) {
			best = t
		}
	}
	return best, best != ""
}

// classifyResource tries the "Type:" label, then url markers, then the title,
// then a dedicated type element.
func classifyResource(blockText, href, title string, typeElement *goquery.Selection) (ResourceType, bool) {
	idx := strings.Index(blockText, typePrefix)
	if idx >= 0 {
		t, ok := leadingLabel(blockText[idx+len(typePrefix):])
		if ok {
			return t, true
		}
	}
	t, ok := classifyUrl(href)
	if ok {
		return t, true
	}
	t, ok = ClassifyLabel(title)
	if ok {
		return t, true
	}
	if typeElement != nil && typeElement.Length() > 0 {
		return ClassifyLabel(htmlutil.SelectionText(typeElement))
	}
	return "", false
}

type blockStrategy struct {
	name     string
	selector string
}

func (s blockStrategy) Name() string {
	return s.name
}

func (s blockStrategy) FindResources(ctx context.Context, doc *goquery.Document, base *url.URL) []Resource {
	var resources []Resource
	doc.Find(s.selector).Each(func(_ int, block *goquery.Selection) {
		resource, ok := resourceFromBlock(ctx, block, base)
		if ok {
			resources = append(resources, resource)
		}
	})
	return resources
}

func resourceFromBlock(ctx context.Context, block *goquery.Selection, base *url.URL) (Resource, bool) {
	var anchor htmlutil.Anchor
	found := false
	for _, a := range htmlutil.GetAnchors(ctx, block.Find("a[href]"), base) {
		if a.Href != "" && NormalizeTitle(a.Name) != "" {
			anchor = a
			found = true
			break
		}
	}
	if !found {
		return Resource{}, false
	}

	title := NormalizeTitle(anchor.Name)
	resourceType, ok := classifyResource(
		htmlutil.SelectionText(block),
		anchor.Href,
		title,
		block.Find(".resource-type, div.type").First(),
	)
	if !ok {
		slog.DebugContext(ctx, "skipping unclassified resource", "title", title, "url", anchor.Href)
		return Resource{}, false
	}

	return Resource{
		Title:       title,
		Url:         anchor.Href,
		Type:        resourceType,
		Description: blockDescription(block, title),
	}, true
}

func blockDescription(block *goquery.Selection, title string) string {
	explicit := htmlutil.SelectionText(block.Find(".description").First())
	if explicit != "" {
		return explicit
	}

	description := ""
	block.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := htmlutil.SelectionText(p)
		if text == "" || strings.Contains(text, typePrefix) || NormalizeTitle(text) == title {
			return true
		}
		description = text
		return false
	})
	return description
}

var previewHrefMarkers = []string{
	"/PreviewResource",
	"LessonPlan",
	"FormativeAssessment",
	"ResourceLesson",
	"ResourceAssessment",
}

type previewAnchorStrategy struct{}

func (previewAnchorStrategy) Name() string {
	return "preview-anchors"
}

func isPreviewHref(href string) bool {
	for _, marker := range previewHrefMarkers {
		if strings.Contains(href, marker) {
			return true
		}
	}
	return false
}

func (previewAnchorStrategy) FindResources(ctx context.Context, doc *goquery.Document, base *url.URL) []Resource {
	var resources []Resource
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a[href]"), base) {
		if anchor.Href == "" || !isPreviewHref(anchor.Href) {
			continue
		}
		title := NormalizeTitle(anchor.Name)
		if title == "" {
			continue
		}
		resourceType, ok := classifyResource("", anchor.Href, title, nil)
		if !ok {
			resourceType, ok = ClassifyLabel(anchor.Title)
		}
		if !ok {
			slog.DebugContext(ctx, "skipping unclassified resource", "title", title, "url", anchor.Href)
			continue
		}

		description := ""
		if anchor.Title != title {
			description = anchor.Title
		}
		resources = append(resources, Resource{
			Title:       title,
			Url:         anchor.Href,
			Type:        resourceType,
			Description: description,
		})
	}
	return resources
}

var accessPointCode = regexp.MustCompile(`^[A-Za-z0-9]+(?:\.[A-Za-z0-9]+)*\.AP\.[A-Za-z0-9]+(?:\.[A-Za-z0-9]+)*$`)

func IsAccessPointCode(s string) bool {
	return accessPointCode.MatchString(s)
}

// describeAccessPoint uses the text around the code, falling back to the anchor's title.
func describeAccessPoint(anchor htmlutil.Anchor) string {
	container := anchor.Node.Closest("li, tr, p, dd")
	if container.Length() > 0 {
		text := strings.Replace(htmlutil.SelectionText(container), anchor.Name, "", 1)
		text = strings.TrimLeft(strings.TrimSpace(text), ":- ")
		if text != "" {
			return text
		}
	}
	return anchor.Title
}

type accessPointLinkStrategy struct{}

func (accessPointLinkStrategy) Name() string {
	return "access-point-links"
}

func (accessPointLinkStrategy) FindAccessPoints(ctx context.Context, doc *goquery.Document, base *url.URL) []AccessPoint {
	var accessPoints []AccessPoint
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a[href]"), base) {
		if !strings.Contains(anchor.Href, "AccessPoint") {
			continue
		}
		id := NormalizeAccessPointID(anchor.Name)
		if !strings.Contains(id, "AP") {
			continue
		}
		accessPoints = append(accessPoints, AccessPoint{
			ID:          id,
			Description: describeAccessPoint(anchor),
		})
	}
	return accessPoints
}

type accessPointCodeStrategy struct{}

func (accessPointCodeStrategy) Name() string {
	return "access-point-codes"
}

func (accessPointCodeStrategy) FindAccessPoints(ctx context.Context, doc *goquery.Document, base *url.URL) []AccessPoint {
	var accessPoints []AccessPoint
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a"), base) {
		id := NormalizeAccessPointID(anchor.Name)
		if !IsAccessPointCode(id) {
			continue
		}
		accessPoints = append(accessPoints, AccessPoint{
			ID:          id,
			Description: describeAccessPoint(anchor),
		})
	}
	return accessPoints
}

type accessPointBlockStrategy struct{}

func (accessPointBlockStrategy) Name() string {
	return "access-point-blocks"
}

func (accessPointBlockStrategy) FindAccessPoints(ctx context.Context, doc *goquery.Document, base *url.URL) []AccessPoint {
	var accessPoints []AccessPoint
	doc.Find(".access-point").Each(func(_ int, block *goquery.Selection) {
		text := htmlutil.SelectionText(block)

		id := ""
		raw := ""
		for _, field := range strings.Fields(text) {
			candidate := NormalizeAccessPointID(field)
			if IsAccessPointCode(candidate) {
				id = candidate
				raw = field
				break
			}
		}
		if id == "" {
			return
		}

		description := htmlutil.SelectionText(block.Find(".access-point-description").First())
		if description == "" {
			description = strings.Replace(text, raw, "", 1)
			description = strings.TrimLeft(strings.TrimSpace(description), ":- ")
		}
		accessPoints = append(accessPoints, AccessPoint{
			ID:          id,
			Description: description,
		})
	})
	return accessPoints
}
