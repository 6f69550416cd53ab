// Package weather fetches current conditions used to situate a
// recommendation. The provider is an external collaborator; a disabled
// client degrades to a fixed mild default instead of failing.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Conditions is the weather snapshot for one city.
type Conditions struct {
	City         string
	Condition    string
	TemperatureC float64
	Humidity     int
}

// Service fetches current weather conditions.
type Service interface {
	Current(ctx context.Context, city string) (*Conditions, error)
	IsEnabled() bool
}

// Config represents weather provider configuration.
type Config struct {
	APIKey  string
	BaseURL string
}

type service struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// NewService creates a new weather Service. An empty API key yields a
// disabled client.
func NewService(cfg *Config) Service {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &service{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (s *service) IsEnabled() bool {
	return s.apiKey != ""
}

type weatherResponse struct {
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Name string `json:"name"`
}

func (s *service) Current(ctx context.Context, city string) (*Conditions, error) {
	if !s.IsEnabled() {
		// Fixed mild default so recommendations stay deterministic
		// without a provider.
		return &Conditions{City: city, Condition: "clear", TemperatureC: 20, Humidity: 50}, nil
	}

	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", s.apiKey)
	query.Set("units", "metric")
	endpoint := fmt.Sprintf("%s/weather?%s", s.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build weather request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch weather")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("weather provider returned %d: %s", resp.StatusCode, body)
	}

	var parsed weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "decode weather response")
	}

	conditions := &Conditions{
		City:         parsed.Name,
		TemperatureC: parsed.Main.Temp,
		Humidity:     parsed.Main.Humidity,
	}
	if len(parsed.Weather) > 0 {
		conditions.Condition = parsed.Weather[0].Main
	}
	if conditions.City == "" {
		conditions.City = city
	}
	return conditions, nil
}
