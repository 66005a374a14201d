package model

import "time"

// LifecyclePayloadCase identifies which variant of a LinkLifecycleEvent is set.
type LifecyclePayloadCase int

const (
	PayloadNotSet LifecyclePayloadCase = iota
	PayloadLinkCreated
	PayloadLinkUpdated
	PayloadLinkDeleted
)

func (c LifecyclePayloadCase) String() string {
	switch c {
	case PayloadLinkCreated:
		return "link_created"
	case PayloadLinkUpdated:
		return "link_updated"
	case PayloadLinkDeleted:
		return "link_deleted"
	default:
		return "not_set"
	}
}

// LinkLifecycleEvent is a tagged union: at most one payload pointer is set.
// A message with none set (or a variant this service does not know) is
// dropped by the projector, it is not an error.
type LinkLifecycleEvent struct {
	LinkCreated *LinkCreated `json:"link_created,omitempty"`
	LinkUpdated *LinkUpdated `json:"link_updated,omitempty"`
	LinkDeleted *LinkDeleted `json:"link_deleted,omitempty"`
}

// PayloadCase reports which variant the event carries.
func (e *LinkLifecycleEvent) PayloadCase() LifecyclePayloadCase {
	switch {
	case e.LinkCreated != nil:
		return PayloadLinkCreated
	case e.LinkUpdated != nil:
		return PayloadLinkUpdated
	case e.LinkDeleted != nil:
		return PayloadLinkDeleted
	default:
		return PayloadNotSet
	}
}

// LinkCreated announces a new canonical link.
type LinkCreated struct {
	LinkID    string    `json:"link_id"`
	UserID    string    `json:"user_id"`
	ShortURL  string    `json:"short_url"`
	LongURL   string    `json:"long_url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkUpdated announces a change to a canonical link's mutable attributes.
type LinkUpdated struct {
	LinkID    string    `json:"link_id"`
	UserID    string    `json:"user_id"`
	ShortURL  string    `json:"short_url"`
	LongURL   string    `json:"long_url"`
	Title     *string   `json:"title,omitempty"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LinkDeleted announces removal of a canonical link.
type LinkDeleted struct {
	LinkID string `json:"link_id"`
}

// EnrichedClickEvent is a click notification after geo/device/OS enrichment.
// Coordinates travel as strings, matching the upstream enrichment contract.
type EnrichedClickEvent struct {
	LinkID        string `json:"link_id"`
	CountryCode   string `json:"country_code"`
	DeviceType    string `json:"device_type"`
	OsName        string `json:"os_name"`
	CityName      string `json:"city_name"`
	CityLatitude  string `json:"city_latitude"`
	CityLongitude string `json:"city_longitude"`
}

const (
	LifecycleStreamName    = "LINK_LIFECYCLE"
	LifecycleStreamSubject = "links.lifecycle"
	LifecycleConsumerName  = "dashboard-lifecycle"

	ClickStreamName    = "CLICKS_ENRICHED"
	ClickStreamSubject = "clicks.enriched"
	ClickConsumerName  = "dashboard-clicks"

	StreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
