package domain

// Region группа серверов на дашборде
type Region string

const (
	RegionUS     Region = "US"
	RegionUK     Region = "UK"
	RegionEurope Region = "Europe"
	RegionAsia   Region = "Asia"
)

// AllRegions is the display order of region tabs.
var AllRegions = []Region{RegionUS, RegionUK, RegionEurope, RegionAsia}

var planPermissions = map[Tier][]Region{
	TierNone:   {},
	TierBasic:  {RegionUS},
	TierPro:    {RegionUS, RegionUK, RegionEurope, RegionAsia},
	TierFamily: {RegionUS, RegionUK, RegionEurope, RegionAsia},
}

// AccessibleRegions returns the regions a tier unlocks. Unknown tiers get
// nothing. The returned slice is a fresh copy.
func AccessibleRegions(tier Tier) []Region {
	regions := planPermissions[tier]
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// CanAccess reports whether tier unlocks region.
func CanAccess(tier Tier, region Region) bool {
	for _, r := range planPermissions[tier] {
		if r == region {
			return true
		}
	}
	return false
}

// SignalStrength качество сигнала сервера
type SignalStrength string

const (
	SignalHigh   SignalStrength = "high"
	SignalMedium SignalStrength = "medium"
	SignalLow    SignalStrength = "low"
)

// ServerLocation один VPN сервер
type ServerLocation struct {
	Name    string         `json:"name"`
	Country string         `json:"country"`
	Signal  SignalStrength `json:"signal"`
	Flag    string         `json:"flag"`
}

// ServerCatalog is the static list of servers shown on the dashboard.
var ServerCatalog = map[Region][]ServerLocation{
	RegionUS: {
		{Name: "New York, NY", Country: "USA", Signal: SignalHigh, Flag: "🇺🇸"},
		{Name: "Dallas, TX", Country: "USA", Signal: SignalMedium, Flag: "🇺🇸"},
		{Name: "Los Angeles, CA", Country: "USA", Signal: SignalHigh, Flag: "🇺🇸"},
	},
	RegionUK: {
		{Name: "London", Country: "UK", Signal: SignalHigh, Flag: "🇬🇧"},
		{Name: "Manchester", Country: "UK", Signal: SignalMedium, Flag: "🇬🇧"},
	},
	RegionEurope: {
		{Name: "Amsterdam", Country: "Netherlands", Signal: SignalHigh, Flag: "🇳🇱"},
		{Name: "Frankfurt", Country: "Germany", Signal: SignalLow, Flag: "🇩🇪"},
		{Name: "Paris", Country: "France", Signal: SignalHigh, Flag: "🇫🇷"},
	},
	RegionAsia: {
		{Name: "Tokyo", Country: "Japan", Signal: SignalHigh, Flag: "🇯🇵"},
		{Name: "Singapore", Country: "Singapore", Signal: SignalMedium, Flag: "🇸🇬"},
	},
}

// RegionView is one dashboard tab: its servers and whether the tier unlocks it.
type RegionView struct {
	Region    Region           `json:"region"`
	Available bool             `json:"available"`
	Servers   []ServerLocation `json:"servers"`
}

// ServerView builds the dashboard server list for a tier, in display order.
// Locked regions are listed without their servers.
func ServerView(tier Tier) []RegionView {
	views := make([]RegionView, 0, len(AllRegions))
	for _, region := range AllRegions {
		view := RegionView{Region: region, Available: CanAccess(tier, region), Servers: []ServerLocation{}}
		if view.Available {
			view.Servers = append(view.Servers, ServerCatalog[region]...)
		}
		views = append(views, view)
	}
	return views
}
