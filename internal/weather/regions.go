package weather

const textFCBase = "http://www.weather.com.cn/textFC/"

// DefaultRegions returns the regional text forecast pages in lookup order.
// Regions do not overlap, so the order only affects latency.
func DefaultRegions() []Region {
	return RegionsAt(textFCBase)
}

// RegionsAt builds the region list against another base URL (mirrors, tests).
func RegionsAt(base string) []Region {
	regions := []Region{
		{Code: "hb", Name: "华北"},
		{Code: "db", Name: "东北"},
		{Code: "hd", Name: "华东"},
		{Code: "hz", Name: "华中"},
		{Code: "hn", Name: "华南"},
		{Code: "xb", Name: "西北"},
		{Code: "xn", Name: "西南"},
		{Code: "gat", Name: "港澳台"},
	}
	for i := range regions {
		regions[i].URL = base + regions[i].Code + ".shtml"
	}
	return regions
}
