package constants

import "time"

// Tables known to the remote store.
const (
	TableBlock          = "block"
	TableCollection     = "collection"
	TableCollectionView = "collection_view"
	TableUser           = "notion_user"
	TableSpace          = "space"
)

const (
	DefaultBaseURL     = "https://www.notion.so"
	APIPath            = "/api/v3/"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultMaxRetries  = 3
	// TokenCookie is the name of the session cookie carrying the auth token.
	TokenCookie = "token_v2"
	// SearchLimit caps the number of pages returned by searchPagesWithParent.
	SearchLimit = 10000
)

var (
	HTTPScheme       = "http"
	HTTPSecureScheme = "https"
)
