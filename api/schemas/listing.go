// api/schemas/listing.go
package schemas

// Listing is the caller-supplied product record for a single publish attempt.
// Optional fields are skipped during form population rather than defaulted;
// Condition is translated through a fixed mapping and Category always resolves
// to at least a fallback taxonomy node.
type Listing struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Brand       string   `json:"brand,omitempty"`
	Category    string   `json:"category"`
	GenderHint  string   `json:"gender_hint,omitempty"`
	Size        string   `json:"size,omitempty"`
	Condition   string   `json:"condition,omitempty"`
	Color       string   `json:"color,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
}

// Cookie mirrors the fields the marketplace needs for an authenticated
// session. It is applied to the page before the first navigation.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  int64  `json:"expires,omitempty"` // Unix seconds; zero means session cookie.
	HTTPOnly bool   `json:"http_only,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	SameSite string `json:"same_site,omitempty"` // "Strict", "Lax" or "None".
}

// Session carries an already-authenticated account state supplied by an
// external session provider. The core never performs a login itself.
type Session struct {
	Cookies  []Cookie `json:"cookies"`
	Identity string   `json:"identity"` // Account identity string, for logging only.
}
