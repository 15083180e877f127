// Package tmdb looks up movie metadata in The Movie Database.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bluray-lister/models"
	"bluray-lister/services"
	"bluray-lister/utils"
)

const (
	DefaultBaseURL = "https://api.themoviedb.org/3"
	posterBaseURL  = "https://image.tmdb.org/t/p/w500"
	castLimit      = 5
)

// Client talks to the TMDB v3 API with a read-access bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *utils.Logger
	retry   *utils.RetryConfig
}

// NewClient returns a Client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, token string, maxRetries int, logger *utils.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.New("tmdb: read token must be configured")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 20 * time.Second},
		logger:  logger,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		},
	}, nil
}

type searchResponse struct {
	Results []struct {
		ID int `json:"id"`
	} `json:"results"`
}

type movieDetails struct {
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
	Adult         bool   `json:"adult"`
	Runtime       int    `json:"runtime"`
	Overview      string `json:"overview"`
	PosterPath    string `json:"poster_path"`
	Genres        []struct {
		Name string `json:"name"`
	} `json:"genres"`
	ProductionCompanies []struct {
		Name string `json:"name"`
	} `json:"production_companies"`
}

type credits struct {
	Cast []struct {
		Name string `json:"name"`
	} `json:"cast"`
	Crew []struct {
		Name string `json:"name"`
		Job  string `json:"job"`
	} `json:"crew"`
}

type releaseDates struct {
	Results []struct {
		Country      string `json:"iso_3166_1"`
		ReleaseDates []struct {
			Certification string `json:"certification"`
		} `json:"release_dates"`
	} `json:"results"`
}

// SearchMovie returns metadata for the best match of title, or nil when
// nothing matches. year narrows the search when non-zero.
func (c *Client) SearchMovie(ctx context.Context, title string, year int) (*models.MovieMetadata, error) {
	q := url.Values{}
	q.Set("query", title)
	q.Set("include_adult", "false")
	q.Set("language", "en-US")
	q.Set("page", "1")
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}

	var found searchResponse
	if err := c.get(ctx, "/search/movie", q, &found); err != nil {
		return nil, err
	}
	if len(found.Results) == 0 {
		c.logger.Info("[tmdb] No match for %q", title)
		return nil, nil
	}
	return c.Movie(ctx, found.Results[0].ID)
}

// Movie fetches details, credits and the US certification of one movie.
func (c *Client) Movie(ctx context.Context, id int) (*models.MovieMetadata, error) {
	lang := url.Values{"language": {"en-US"}}
	base := "/movie/" + strconv.Itoa(id)

	var d movieDetails
	if err := c.get(ctx, base, lang, &d); err != nil {
		return nil, err
	}
	var cr credits
	if err := c.get(ctx, base+"/credits", lang, &cr); err != nil {
		return nil, err
	}
	var rd releaseDates
	if err := c.get(ctx, base+"/release_dates", nil, &rd); err != nil {
		return nil, err
	}

	meta := &models.MovieMetadata{
		Title:         d.Title,
		OriginalTitle: d.OriginalTitle,
		ReleaseYear:   services.ReleaseYear(d.ReleaseDate),
		Genres:        []string{},
		Actors:        []string{},
		Runtime:       d.Runtime,
		Overview:      d.Overview,
		Rating:        usCertification(rd),
	}
	if meta.Rating == "" {
		meta.Rating = "PG-13"
		if d.Adult {
			meta.Rating = "R"
		}
	}
	for _, g := range d.Genres {
		meta.Genres = append(meta.Genres, g.Name)
	}
	if len(d.ProductionCompanies) > 0 {
		meta.Studio = d.ProductionCompanies[0].Name
	}
	for _, m := range cr.Crew {
		if m.Job == "Director" {
			meta.Director = m.Name
			break
		}
	}
	for i, a := range cr.Cast {
		if i == castLimit {
			break
		}
		meta.Actors = append(meta.Actors, a.Name)
	}
	if d.PosterPath != "" {
		meta.PosterURL = posterBaseURL + d.PosterPath
	}

	c.logger.Info("[tmdb] Matched %q (%s)", meta.Title, meta.ReleaseYear)
	return meta, nil
}

func usCertification(rd releaseDates) string {
	for _, r := range rd.Results {
		if r.Country != "US" {
			continue
		}
		for _, rel := range r.ReleaseDates {
			if rel.Certification != "" {
				return rel.Certification
			}
		}
	}
	return ""
}

// get issues an authenticated GET and decodes the JSON body into out.
// Client errors other than 429 are not retried.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	return c.retry.DoContext(ctx, "tmdb GET "+path, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return utils.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("tmdb: %s: status %d: %s", path, resp.StatusCode, body)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return utils.Permanent(err)
			}
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return utils.Permanent(fmt.Errorf("tmdb: decode %s: %w", path, err))
		}
		return nil
	})
}
