package render

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"
)

// namespace of the name-based UUIDs used as feed and entry ids
var feedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/stacklok/status-page-server/feed"))

// FeedEntryID returns the stable Atom id of an intervention
func FeedEntryID(interventionID int64) string {
	return "urn:uuid:" + uuid.NewSHA1(feedNamespace, []byte(strconv.FormatInt(interventionID, 10))).String()
}

// BuildFeed renders the Atom feed of site. Every timestamp comes from stored
// data, so an unchanged snapshot always yields the same document.
func BuildFeed(site *Site, baseURL string) (string, error) {
	feed := &feeds.Feed{
		Title: site.SiteName,
		Link:  &feeds.Link{Href: baseURL + "/"},
		Id:    "urn:uuid:" + uuid.NewSHA1(feedNamespace, []byte(baseURL)).String(),
	}

	for _, view := range site.Interventions {
		i := view.source

		updated := i.StartDate
		if i.EndDate != nil && i.EndDate.After(updated) {
			updated = *i.EndDate
		}
		if updated.After(feed.Updated) {
			feed.Updated = updated
		}

		feed.Items = append(feed.Items, &feeds.Item{
			Id:          FeedEntryID(i.ID),
			Title:       i.Title,
			Link:        &feeds.Link{Href: baseURL + "/" + view.Link},
			Description: view.Severity + " - " + view.Status,
			Content:     string(view.Description),
			Created:     i.StartDate.UTC(),
			Updated:     updated.UTC(),
		})
	}

	if feed.Updated.IsZero() {
		feed.Updated = time.Unix(0, 0)
	}
	feed.Updated = feed.Updated.UTC()

	return feed.ToAtom()
}
