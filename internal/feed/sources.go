package feed

import "sort"

// Sources maps each news category to its syndication endpoints, in fetch
// order.
var Sources = map[string][]string{
	"world": {
		"http://feeds.bbci.co.uk/news/world/rss.xml",
		"https://www.aljazeera.com/xml/rss/all.xml",
	},
	"technology": {
		"https://techcrunch.com/feed/",
		"https://www.theverge.com/rss/index.xml",
	},
	"sports": {
		"https://www.espn.com/espn/rss/news",
		"http://feeds.bbci.co.uk/sport/rss.xml?edition=uk",
	},
	"entertainment": {
		"https://www.theguardian.com/culture/rss",
		"https://variety.com/feed/",
	},
}

// SourcesFor returns the feed URLs for a category, falling back to the
// world feeds for unknown categories.
func SourcesFor(category string) []string {
	if srcs, ok := Sources[category]; ok {
		return srcs
	}

	return Sources["world"]
}

// Categories lists the known categories in a stable order.
func Categories() []string {
	cats := make([]string, 0, len(Sources))
	for cat := range Sources {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	return cats
}
