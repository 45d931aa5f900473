package api

// Request is a GraphQL request body.
type Request struct {
	OperationName string `json:"operationName"`
	Variables     any    `json:"variables"`
	Query         string `json:"query"`
}

type searchVariables struct {
	Q      *string      `json:"q"`
	Filter searchFilter `json:"filter"`
}

type orderByField struct {
	Field string `json:"field"`
}

type searchFilter struct {
	CategorySlug string       `json:"categorySlug"`
	Origin       *string      `json:"origin"`
	Connected    bool         `json:"connected"`
	Delivery     *bool        `json:"delivery"`
	RegionIDs    []string     `json:"regionIds"`
	CityIDs      []string     `json:"cityIds"`
	PriceRange   [2]*int      `json:"priceRange"`
	Exchange     *bool        `json:"exchange"`
	HasPictures  bool         `json:"hasPictures"`
	HasPrice     bool         `json:"hasPrice"`
	PriceUnit    *string      `json:"priceUnit"`
	Fields       []string     `json:"fields"`
	Page         int          `json:"page"`
	OrderByField orderByField `json:"orderByField"`
	Count        int          `json:"count"`
}

// SearchPayload builds the paged search request for a category, newest
// refreshed listings first.
func SearchPayload(categorySlug string, page, count int) Request {
	return Request{
		OperationName: "SearchQuery",
		Variables: searchVariables{
			Filter: searchFilter{
				CategorySlug: categorySlug,
				RegionIDs:    []string{},
				CityIDs:      []string{},
				Fields:       []string{},
				Page:         page,
				OrderByField: orderByField{Field: "REFRESHED_AT"},
				Count:        count,
			},
		},
		Query: SearchQuery,
	}
}

// DetailPayload builds the by-ID request using one of the detail queries.
func DetailPayload(id string, query string) Request {
	return Request{
		OperationName: "AnnouncementGet",
		Variables:     map[string]string{"id": id},
		Query:         query,
	}
}

const SearchQuery = `
query SearchQuery($q: String, $filter: SearchFilterInput) {
  search(q: $q, filter: $filter) {
    announcements {
      data {
        id
      }
      paginatorInfo {
        lastPage
        hasMorePages
      }
    }
  }
}`

// QueryMini selects the essential listing fields.
const QueryMini = `
query AnnouncementGet($id: ID!) {
  announcement: announcementDetails(id: $id) {
    id
    reference
    title
    description
    pricePreview
    priceUnit
    createdAt: refreshedAt
    specs {
      specification {
        label
      }
      valueText
    }
    cities {
      name
    }
  }
}`

// QueryAll selects everything the flat ALL schema maps, plus media.
const QueryAll = `
query AnnouncementGet($id: ID!) {
  announcement: announcementDetails(id: $id) {
    id
    reference
    title
    slug
    description
    orderExternalUrl
    createdAt: refreshedAt
    price
    pricePreview
    oldPrice
    oldPricePreview
    priceType
    exchangeType
    priceUnit
    hasDelivery
    deliveryType
    hasPhone
    hasEmail
    quantity
    status
    street_name
    category {
      id
      slug
      name
    }
    defaultMedia(size: ORIGINAL) {
      mediaUrl
      mimeType
      thumbnail
    }
    medias(size: LARGE) {
      mediaUrl
      mimeType
      thumbnail
    }
    specs {
      specification {
        label
        codename
      }
      valueText
    }
    user {
      id
      username
      displayName
      avatarUrl
    }
    isFromStore
    store {
      id
      name
      slug
      description
      imageUrl
      followerCount
      announcementsCount
      status
    }
    cities {
      id
      name
      region {
        id
        name
        slug
      }
    }
    isCommentEnabled
    noAdsense
    variants {
      id
    }
    showAnalytics
    messengerLink
  }
}`
