package models

// ContactInfo is the email and outbound links known for a channel
type ContactInfo struct {
	Email string   `json:"email" bson:"email"`
	Links []string `json:"links" bson:"links"`
}

// IsEmpty reports whether nothing was found
func (c ContactInfo) IsEmpty() bool {
	return c.Email == "" && len(c.Links) == 0
}

// MergeContacts folds the classifier's contact guesses into the scraped contacts.
// The classifier email is used only when scraping found none. Classifier links are
// appended after the scraped ones, skipping duplicates.
func MergeContacts(scraped, classifier ContactInfo) ContactInfo {
	merged := ContactInfo{Email: scraped.Email}
	if merged.Email == "" {
		merged.Email = classifier.Email
	}

	seen := make(map[string]struct{}, len(scraped.Links)+len(classifier.Links))
	merged.Links = make([]string, 0, len(scraped.Links)+len(classifier.Links))
	for _, group := range [][]string{scraped.Links, classifier.Links} {
		for _, link := range group {
			if link == "" {
				continue
			}
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			merged.Links = append(merged.Links, link)
		}
	}
	return merged
}
