// Package format renders aggregated oracle results as transcript text.
//
// Rendering is pure: the same input always produces byte-identical output.
// Absent fields inside an aggregated value render as a neutral placeholder.
package format

import (
	"fmt"
	"strings"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

// NoDataMessage is rendered when a response carries no aggregated value.
const NoDataMessage = "No data available from oracle."

// Fallback labels used when a response does not attribute its source.
const (
	DefaultPriceSource   = "Chainlink"
	DefaultWeatherSource = "OpenWeatherMap"
	SpaceSource          = "NASA NEO API"
)

// maxAsteroids bounds the enumerated asteroid list.
const maxAsteroids = 5

type renderFunc func(params map[string]string, data *domain.AggregatedOracleData) string

var renderers = map[domain.OracleKind]renderFunc{
	domain.OracleKindPriceFeed: renderPriceFeed,
	domain.OracleKindWeather:   renderWeather,
	domain.OracleKindSpace:     renderSpace,
}

// Format renders data for the given oracle kind. params are the request
// parameters the query was issued with.
func Format(kind domain.OracleKind, params map[string]string, data *domain.AggregatedOracleData) string {
	if !data.HasValue() {
		return NoDataMessage
	}
	render, ok := renderers[kind]
	if !ok {
		return NoDataMessage
	}
	return render(params, data)
}

func renderPriceFeed(params map[string]string, data *domain.AggregatedOracleData) string {
	v := Of(data.AggregatedValue)
	symbol := param(params, domain.ParamSymbol, "ETH/USD")

	change := "0"
	if f, ok := v.Get("change24h").Number(); ok {
		change = Signed(f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 **%s Price Data**\n\n", symbol)
	fmt.Fprintf(&b, "**Current Price:** $%s\n", numberOrNA(v.Get("price"), Grouped))
	fmt.Fprintf(&b, "**24h Change:** %s%%\n", change)
	fmt.Fprintf(&b, "**24h Volume:** $%s\n", Grouped(v.Get("volume24h").NumberOr(0)))
	fmt.Fprintf(&b, "**Market Cap:** $%s\n\n", Grouped(v.Get("marketCap").NumberOr(0)))
	fmt.Fprintf(&b, "**Source:** %s\n", primarySource(data, DefaultPriceSource))
	fmt.Fprintf(&b, "**Confidence:** %s\n", Percent(data.Confidence))
	fmt.Fprintf(&b, "**Execution Time:** %sms", Plain(data.ExecutionTime))
	return b.String()
}

func renderWeather(params map[string]string, data *domain.AggregatedOracleData) string {
	v := Of(data.AggregatedValue)
	location := v.Get("location").TextOr(param(params, domain.ParamCity, "London"))
	coords := v.Get("coordinates")

	var b strings.Builder
	fmt.Fprintf(&b, "🌤️ **Weather in %s**\n\n", location)
	fmt.Fprintf(&b, "**Temperature:** %s°C\n", numberOrNA(v.Get("temperature"), Plain))
	fmt.Fprintf(&b, "**Condition:** %s\n", v.Get("condition").TextOr(NotAvailable))
	fmt.Fprintf(&b, "**Humidity:** %s%%\n", numberOrNA(v.Get("humidity"), Plain))
	fmt.Fprintf(&b, "**Pressure:** %s hPa\n", numberOrNA(v.Get("pressure"), Plain))
	fmt.Fprintf(&b, "**Wind Speed:** %s km/h\n\n", numberOrNA(v.Get("windSpeed"), Plain))
	fmt.Fprintf(&b, "**Coordinates:** %s, %s\n",
		numberOrNA(coords.Get("lat"), fixed4),
		numberOrNA(coords.Get("lon"), fixed4),
	)
	fmt.Fprintf(&b, "**Source:** %s\n", primarySource(data, DefaultWeatherSource))
	fmt.Fprintf(&b, "**Confidence:** %s", Percent(data.Confidence))
	return b.String()
}

func renderSpace(params map[string]string, data *domain.AggregatedOracleData) string {
	v := Of(data.AggregatedValue)
	date := param(params, domain.ParamDate, v.Get("date").TextOr(NotAvailable))
	asteroids := v.Get("data").List()

	hazardous := 0
	for _, a := range asteroids {
		if a.Get("isPotentiallyHazardous").Bool() {
			hazardous++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚀 **NASA Space Data for %s**\n\n", date)
	fmt.Fprintf(&b, "**Total Asteroids:** %d\n", len(asteroids))
	fmt.Fprintf(&b, "**Potentially Hazardous:** %d\n\n", hazardous)
	b.WriteString("**Recent Asteroids:**\n")

	for i, a := range asteroids {
		if i == maxAsteroids {
			break
		}
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, a.Get("name").TextOr(NotAvailable))
		fmt.Fprintf(&b, "   Size: %s-%sm\n",
			numberOrNA(a.Path("diameter", "min"), Plain),
			numberOrNA(a.Path("diameter", "max"), Plain),
		)
		fmt.Fprintf(&b, "   Distance: %skm\n", Grouped(a.Get("missDistance").NumberOr(0)))
		fmt.Fprintf(&b, "   Velocity: %skm/h\n", Grouped(a.Get("velocity").NumberOr(0)))
		if a.Get("isPotentiallyHazardous").Bool() {
			b.WriteString("   ⚠️ Potentially Hazardous\n\n")
		} else {
			b.WriteString("   ✅ Safe\n\n")
		}
	}

	fmt.Fprintf(&b, "**Source:** %s\n", SpaceSource)
	fmt.Fprintf(&b, "**Confidence:** %s", Percent(data.Confidence))
	return b.String()
}

func primarySource(data *domain.AggregatedOracleData, fallback string) string {
	if len(data.Sources) > 0 && data.Sources[0] != "" {
		return data.Sources[0]
	}
	return fallback
}

func param(params map[string]string, key, fallback string) string {
	if v := params[key]; v != "" {
		return v
	}
	return fallback
}

func fixed4(f float64) string {
	return Fixed(f, 4)
}
