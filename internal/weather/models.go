package weather

// Placeholders and markers used by the region pages and by Record.
const (
	// CellPlaceholder is what the pages print for an unknown temperature or weather.
	CellPlaceholder = "-"
	// WindPlaceholder is what the pages print for an unknown wind.
	WindPlaceholder = "--"

	MissingTemperature = "温度数据缺失"
	MissingWeather     = "天气数据缺失"
	MissingWind        = "风力数据缺失"

	// DateLayout formats Record.Date.
	DateLayout = "2006年01月02日"
)

// Record is the weather for one city on one day, as scraped from a region page.
// TemperatureRange, WeatherType and Wind are never empty; a Missing* marker
// stands in for data the page does not provide.
type Record struct {
	City             string `json:"city"`
	TemperatureRange string `json:"temperatureRange"`
	WeatherType      string `json:"weatherType"`
	Wind             string `json:"wind"`
	Date             string `json:"date"`
}

// Region is one regional index page.
type Region struct {
	Code string
	Name string
	URL  string
}
