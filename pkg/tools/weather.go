package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agro-assistant-be/pkg/llm"
)

const weatherSchema = `{
	"type": "object",
	"properties": {
		"location": {
			"type": "string",
			"description": "Nome da cidade ou município, ex: 'Ribeirão Preto, SP'"
		}
	},
	"required": ["location"]
}`

// WeatherTool answers current-conditions questions via the Open-Meteo
// public API (geocoding + forecast, no key required).
type WeatherTool struct {
	client         *http.Client
	geocodeBaseURL string
	apiBaseURL     string
}

type weatherParams struct {
	Location string `json:"location"`
}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{
		client:         &http.Client{Timeout: 15 * time.Second},
		geocodeBaseURL: "https://geocoding-api.open-meteo.com/v1",
		apiBaseURL:     "https://api.open-meteo.com/v1",
	}
}

func (t *WeatherTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "get_weather",
		Description: "Consulta as condições meteorológicas atuais e a previsão para uma localidade. Útil para decisões de plantio, pulverização e colheita.",
		Parameters:  json.RawMessage(weatherSchema),
	}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		Precipitation float64 `json:"precipitation"`
		WindSpeed     float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

func (t *WeatherTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var params weatherParams
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	location := strings.TrimSpace(params.Location)
	if location == "" {
		return "", errors.New("location must not be empty")
	}

	geoURL := fmt.Sprintf("%s/search?name=%s&count=1&language=pt&format=json",
		t.geocodeBaseURL, url.QueryEscape(location))
	var geo geocodeResponse
	if err := t.getJSON(ctx, geoURL, &geo); err != nil {
		return "", fmt.Errorf("geocoding failed: %w", err)
	}
	if len(geo.Results) == 0 {
		return "", fmt.Errorf("location not found: %s", location)
	}
	place := geo.Results[0]

	forecastURL := fmt.Sprintf("%s/forecast?latitude=%f&longitude=%f&current=temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m",
		t.apiBaseURL, place.Latitude, place.Longitude)
	var forecast forecastResponse
	if err := t.getJSON(ctx, forecastURL, &forecast); err != nil {
		return "", fmt.Errorf("forecast failed: %w", err)
	}

	result := map[string]interface{}{
		"local":            fmt.Sprintf("%s, %s, %s", place.Name, place.Admin1, place.Country),
		"temperatura_c":    forecast.Current.Temperature,
		"umidade_relativa": forecast.Current.Humidity,
		"precipitacao_mm":  forecast.Current.Precipitation,
		"vento_kmh":        forecast.Current.WindSpeed,
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (t *WeatherTool) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
