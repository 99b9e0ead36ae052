package types

import "time"

// Site is one row of the network's sites table.
type Site struct {
	SiteID    int64     `json:"site_id"`
	NetworkID int64     `json:"network_id"`
	Domain    string    `json:"domain"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}
