package stac

import "strings"

// CollectionRepository is where the collection documents are published.
const CollectionRepository = "https://raw.githubusercontent.com/sat-utils/sat-stac-sentinel/develop/stac_sentinel"

// CollectionLink returns the "collection" link for collection id.
func CollectionLink(id string) Link {
	return Link{
		Rel:  "collection",
		Href: strings.TrimRight(CollectionRepository, "/") + "/" + id + ".json",
		Type: "application/json",
	}
}
