package domain

// PriceFeedData is the aggregated value shape for price_feed.
type PriceFeedData struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Change24h float64 `json:"change24h"`
	Volume24h float64 `json:"volume24h"`
	MarketCap float64 `json:"marketCap"`
	Decimals  int     `json:"decimals"`
	RoundID   string  `json:"roundId"`
	UpdatedAt int64   `json:"updatedAt"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherData is the aggregated value shape for weather.
type WeatherData struct {
	Location    string      `json:"location"`
	Temperature float64     `json:"temperature"`
	Humidity    float64     `json:"humidity"`
	Pressure    float64     `json:"pressure"`
	WindSpeed   float64     `json:"windSpeed"`
	Condition   string      `json:"condition"`
	Coordinates Coordinates `json:"coordinates"`
}

// Diameter is an estimated size range in meters.
type Diameter struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AsteroidData describes one near-earth object.
type AsteroidData struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Diameter               Diameter `json:"diameter"`
	CloseApproachDate      string   `json:"closeApproachDate"`
	Velocity               float64  `json:"velocity"`
	MissDistance           float64  `json:"missDistance"`
	IsPotentiallyHazardous bool     `json:"isPotentiallyHazardous"`
}

// SpaceData is the aggregated value shape for space.
type SpaceData struct {
	DataType   string         `json:"dataType"`
	Data       []AsteroidData `json:"data"`
	Date       string         `json:"date"`
	Mission    string         `json:"mission"`
	Instrument string         `json:"instrument"`
}
