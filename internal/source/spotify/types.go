package spotify

// artistResponse mirrors the Spotify Web API artist object, trimmed to the
// fields we consume.
type artistResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Genres    []string        `json:"genres"`
	Images    []imageObject   `json:"images"`
	Followers followersObject `json:"followers"`
	External  externalURLs    `json:"external_urls"`
}

type imageObject struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type followersObject struct {
	Total int `json:"total"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// searchResponse mirrors the artist portion of a Spotify search response.
type searchResponse struct {
	Artists struct {
		Items []artistResponse `json:"items"`
	} `json:"artists"`
}
