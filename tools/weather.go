package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Weather tool names.
const (
	GetWeather  = "get_weather"
	GetForecast = "get_forecast"
)

// WeatherReadScope is required to call the weather tools.
const WeatherReadScope = "weather:read"

// MaxForecastDays bounds get_forecast.
const MaxForecastDays = 14

// DefaultOperationScopes maps the weather tools to their required scope.
func DefaultOperationScopes() map[string]string {
	return map[string]string{
		GetWeather:  WeatherReadScope,
		GetForecast: WeatherReadScope,
	}
}

// WeatherArgs are the arguments of get_weather.
type WeatherArgs struct {
	City string `json:"city"`
}

// ForecastArgs are the arguments of get_forecast.
type ForecastArgs struct {
	City string `json:"city"`
	Days int    `json:"days"`
}

// WeatherReport is the result of get_weather.
type WeatherReport struct {
	City        string `json:"city"`
	Temperature string `json:"temperature"`
	Condition   string `json:"condition"`
	Humidity    string `json:"humidity"`
}

// ForecastDay is one day of a forecast.
type ForecastDay struct {
	Day         int    `json:"day"`
	Temperature string `json:"temperature"`
	Condition   string `json:"condition"`
}

// Forecast is the result of get_forecast.
type Forecast struct {
	City     string        `json:"city"`
	Days     int           `json:"days"`
	Forecast []ForecastDay `json:"forecast"`
}

// RegisterWeather registers get_weather and get_forecast.
func RegisterWeather(r *Registry) error {
	if err := r.Register(Tool{
		Name:        GetWeather,
		Namespace:   "weather",
		Description: "Get weather data for a city.",
		Tags:        []string{"read"},
		Handler:     getWeather,
	}); err != nil {
		return err
	}
	return r.Register(Tool{
		Name:        GetForecast,
		Namespace:   "weather",
		Description: "Get weather forecast for a city.",
		Tags:        []string{"read"},
		Handler:     getForecast,
	})
}

// NewWeatherRegistry returns a registry holding the weather tools.
func NewWeatherRegistry() *Registry {
	r := NewRegistry()
	if err := RegisterWeather(r); err != nil {
		panic(err)
	}
	return r
}

func getWeather(_ context.Context, raw json.RawMessage) (any, error) {
	var args WeatherArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	city := strings.TrimSpace(args.City)
	if city == "" {
		return nil, fmt.Errorf("%w: city is required", ErrInvalidArguments)
	}
	return WeatherReport{
		City:        city,
		Temperature: "22",
		Condition:   "Partly cloudy",
		Humidity:    "65%",
	}, nil
}

func getForecast(_ context.Context, raw json.RawMessage) (any, error) {
	var args ForecastArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	city := strings.TrimSpace(args.City)
	if city == "" {
		return nil, fmt.Errorf("%w: city is required", ErrInvalidArguments)
	}
	if args.Days < 1 || args.Days > MaxForecastDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidArguments, MaxForecastDays)
	}

	days := make([]ForecastDay, args.Days)
	for i := range days {
		days[i] = ForecastDay{
			Day:         i + 1,
			Temperature: strconv.Itoa(20 + i),
			Condition:   "Sunny",
		}
	}
	return Forecast{City: city, Days: args.Days, Forecast: days}, nil
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
