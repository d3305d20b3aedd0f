package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GoogleAutocomplete queries the Places Autocomplete web service.
type GoogleAutocomplete struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewGoogleAutocomplete(baseURL, apiKey string, client *http.Client) *GoogleAutocomplete {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleAutocomplete{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (g *GoogleAutocomplete) Suggest(ctx context.Context, input string) ([]Suggestion, error) {
	q := url.Values{}
	q.Set("input", input)
	q.Set("key", g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/maps/api/place/autocomplete/json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("autocomplete: unexpected HTTP status %d", resp.StatusCode)
	}

	var result struct {
		Status      string `json:"status"`
		Predictions []struct {
			PlaceID     string `json:"place_id"`
			Description string `json:"description"`
			Structured  struct {
				MainText      string `json:"main_text"`
				SecondaryText string `json:"secondary_text"`
			} `json:"structured_formatting"`
		} `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	switch result.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("autocomplete: status %s", result.Status)
	}

	out := make([]Suggestion, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		out = append(out, Suggestion{
			ID:        p.PlaceID,
			Text:      p.Description,
			Secondary: p.Structured.SecondaryText,
		})
	}
	return out, nil
}
