package tools

import (
	"context"
	"fmt"
	"time"
)

// WeatherName is the unique identifier of the weather capability.
const WeatherName = "getWeather"

const weatherDescription = "Get current weather information for a specific city. " +
	"Returns temperature, conditions, and humidity."

// weatherData is simulated; a real deployment would call a weather API.
var weatherData = map[string]string{
	"New York": "Sunny, 22°C, Humidity: 65%",
	"London":   "Cloudy, 15°C, Humidity: 80%",
	"Tokyo":    "Rainy, 18°C, Humidity: 90%",
	"Paris":    "Partly Cloudy, 20°C, Humidity: 70%",
	"Sydney":   "Clear, 25°C, Humidity: 55%",
	"Berlin":   "Overcast, 16°C, Humidity: 75%",
	"Moscow":   "Snow, -5°C, Humidity: 85%",
	"Dubai":    "Hot, 35°C, Humidity: 40%",
}

// NewWeatherCapability creates the weather capability. clock may be nil, in
// which case time.Now is used.
func NewWeatherCapability(clock func() time.Time) *Capability {
	if clock == nil {
		clock = time.Now
	}

	return New(WeatherName, weatherDescription, func(_ context.Context, input WeatherInput) (string, error) {
		cityWeather, ok := weatherData[input.City]
		if !ok {
			cityWeather = fmt.Sprintf("Weather data not available for %s", input.City)
		}

		return fmt.Sprintf("Current weather in %s:\n%s\nLast updated: %s",
			input.City, cityWeather, clock().Format("15:04")), nil
	})
}
