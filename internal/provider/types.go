package provider

// SearchResult is one row of a title search.
type SearchResult struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Kind     string `json:"kind"` // "primary", "synonym", "short", "official"
	Language string `json:"language,omitempty"`
	// Score orders results: 3 exact match, 2 prefix, 1 substring.
	Score int `json:"score"`
}

// Title is one of an anime's names.
type Title struct {
	Title    string `json:"title"`
	Kind     string `json:"kind"` // "main", "official", "synonym", "short"
	Language string `json:"language,omitempty"`
}

// Rating is a score with the number of votes behind it.
type Rating struct {
	Score float64 `json:"score"`
	Count int     `json:"count,omitempty"`
}

// Ratings groups an anime's rating kinds. AniDB distinguishes the permanent
// rating (votes after completion), the temporary rating (votes while airing)
// and review scores.
type Ratings struct {
	Permanent *Rating `json:"permanent,omitempty"`
	Temporary *Rating `json:"temporary,omitempty"`
	Review    *Rating `json:"review,omitempty"`
}

// Tag is a category or genre label with its community weight.
type Tag struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Weight      int    `json:"weight,omitempty"`
	Spoiler     bool   `json:"spoiler,omitempty"`
}

// Relation links to another anime in the same franchise.
type Relation struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"` // "Sequel", "Prequel", "Side Story", ...
}

// Credit is one person or studio involved in the production.
type Credit struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// SimilarAnime is a community-voted similarity link.
type SimilarAnime struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Approval int    `json:"approval,omitempty"`
	Total    int    `json:"total,omitempty"`
}

// AnimeDetails is the full record for one anime. Dates are ISO "2006-01-02"
// strings, empty when unknown.
type AnimeDetails struct {
	ID           int            `json:"id"`
	Title        string         `json:"title"`
	Type         string         `json:"type"` // "TV Series", "Movie", "OVA", ...
	EpisodeCount int            `json:"episode_count"`
	StartDate    string         `json:"start_date,omitempty"`
	EndDate      string         `json:"end_date,omitempty"`
	Titles       []Title        `json:"titles,omitempty"`
	Synopsis     string         `json:"synopsis,omitempty"`
	URL          string         `json:"url,omitempty"`
	PictureURL   string         `json:"picture_url,omitempty"`
	Restricted   bool           `json:"restricted,omitempty"`
	Ratings      *Ratings       `json:"ratings,omitempty"`
	Tags         []Tag          `json:"tags,omitempty"`
	Related      []Relation     `json:"related,omitempty"`
	Creators     []Credit       `json:"creators,omitempty"`
	Similar      []SimilarAnime `json:"similar,omitempty"`
}
