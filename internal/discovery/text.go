package discovery

import (
	"fmt"
	"strings"

	"channel-scout/pkg/models"
)

// ComposeChannelText renders the channel summary handed to the classifier
func ComposeChannelText(c models.Candidate, contact models.ContactInfo, sample models.RecentVideoSample) string {
	links := models.NotAvailable
	if len(contact.Links) > 0 {
		links = strings.Join(contact.Links, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Channel Name: %s\n", c.Title)
	fmt.Fprintf(&b, "Subscribers: %d\n", c.SubscriberCount)
	fmt.Fprintf(&b, "Description: %s\n", c.Description)
	fmt.Fprintf(&b, "Links: %s\n", links)
	fmt.Fprintf(&b, "Last 3 Video Titles: %s\n", joinOrNA(sample.Titles(), " | "))
	fmt.Fprintf(&b, "Average Views: %.0f\n", sample.AverageViews())
	fmt.Fprintf(&b, "Last 3 Video Descriptions: %s\n", joinOrNA(sample.Descriptions(), " | "))
	fmt.Fprintf(&b, "Country: %s", c.Country)
	return b.String()
}

func joinOrNA(parts []string, sep string) string {
	if len(parts) == 0 {
		return models.NotAvailable
	}
	return strings.Join(parts, sep)
}
