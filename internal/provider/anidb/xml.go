package anidb

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/revittco/anibridge/internal/provider"
)

// animeXML mirrors the AniDB HTTP API anime document. Numeric fields decode
// as strings because the feed occasionally carries blanks where a number
// belongs; conversion is best-effort, matching the API's own looseness.
type animeXML struct {
	XMLName    xml.Name `xml:"anime"`
	ID         string   `xml:"id,attr"`
	AID        string   `xml:"aid,attr"`
	Restricted string   `xml:"restricted,attr"`

	Type         string `xml:"type"`
	EpisodeCount string `xml:"episodecount"`
	StartDate    string `xml:"startdate"`
	EndDate      string `xml:"enddate"`
	Description  string `xml:"description"`
	URL          string `xml:"url"`
	Picture      string `xml:"picture"`

	Titles   []titleXML   `xml:"titles>title"`
	Creators []creatorXML `xml:"creators>name"`
	Related  []relatedXML `xml:"relatedanime>anime"`
	Similar  []similarXML `xml:"similaranime>anime"`
	Ratings  *ratingsXML  `xml:"ratings"`
	Tags     []tagXML     `xml:"tags>tag"`
}

type titleXML struct {
	Value string `xml:",chardata"`
	Type  string `xml:"type,attr"`
	// Matches both lang and xml:lang; the decoder ignores the namespace
	// when the tag names none.
	Lang string `xml:"lang,attr"`
}

type creatorXML struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
	Type  string `xml:"type,attr"`
}

type relatedXML struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
	Type  string `xml:"type,attr"`
}

type similarXML struct {
	Value    string `xml:",chardata"`
	ID       string `xml:"id,attr"`
	Approval string `xml:"approval,attr"`
	Total    string `xml:"total,attr"`
}

type ratingsXML struct {
	Permanent *ratingXML `xml:"permanent"`
	Temporary *ratingXML `xml:"temporary"`
	Review    *ratingXML `xml:"review"`
}

type ratingXML struct {
	Value string `xml:",chardata"`
	Count string `xml:"count,attr"`
}

type tagXML struct {
	ID          string `xml:"id,attr"`
	Weight      string `xml:"weight,attr"`
	Spoiler     string `xml:"spoiler,attr"`
	Verified    string `xml:"verified,attr"`
	Name        string `xml:"name"`
	Description string `xml:"description"`
}

// apiErrorXML is the error document AniDB returns with a 200 status.
type apiErrorXML struct {
	XMLName xml.Name `xml:"error"`
	Code    string   `xml:"code,attr"`
	Message string   `xml:",chardata"`
}

// parseAnimeDetails decodes an AniDB anime XML document into the
// provider-neutral record. Malformed sub-elements are skipped rather than
// failing the whole document; only a missing ID or title is fatal.
func parseAnimeDetails(data []byte) (*provider.AnimeDetails, error) {
	var doc animeXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode anime xml: %w", err)
	}

	// The HTTP API sets id; older dumps used aid.
	id := atoiSafe(doc.AID)
	if id == 0 {
		id = atoiSafe(doc.ID)
	}
	if id <= 0 {
		return nil, fmt.Errorf("anime element missing id attribute")
	}

	titles := make([]provider.Title, 0, len(doc.Titles))
	for _, t := range doc.Titles {
		text := strings.TrimSpace(t.Value)
		if text == "" {
			continue
		}
		titles = append(titles, provider.Title{
			Title:    text,
			Kind:     normalizeTitleKind(t.Type),
			Language: strings.TrimSpace(t.Lang),
		})
	}

	main := mainTitle(titles)
	if main == "" {
		return nil, fmt.Errorf("anime %d missing title", id)
	}

	details := &provider.AnimeDetails{
		ID:           id,
		Title:        main,
		Type:         textOr(doc.Type, "Unknown"),
		EpisodeCount: atoiSafe(doc.EpisodeCount),
		StartDate:    normalizeDate(doc.StartDate),
		EndDate:      normalizeDate(doc.EndDate),
		Titles:       titles,
		Synopsis:     strings.TrimSpace(doc.Description),
		URL:          strings.TrimSpace(doc.URL),
		Restricted:   boolish(doc.Restricted),
		Ratings:      convertRatings(doc.Ratings),
	}

	if pic := strings.TrimSpace(doc.Picture); pic != "" {
		details.PictureURL = pictureBaseURL + pic
	}

	for _, c := range doc.Creators {
		name := strings.TrimSpace(c.Value)
		cid := atoiSafe(c.ID)
		if name == "" || cid == 0 {
			continue
		}
		details.Creators = append(details.Creators, provider.Credit{
			ID:   cid,
			Name: name,
			Role: textOr(c.Type, "Unknown"),
		})
	}

	for _, r := range doc.Related {
		title := strings.TrimSpace(r.Value)
		rid := atoiSafe(r.ID)
		if title == "" || rid == 0 {
			continue
		}
		details.Related = append(details.Related, provider.Relation{
			ID:    rid,
			Title: title,
			Type:  textOr(r.Type, "Related"),
		})
	}

	for _, s := range doc.Similar {
		title := strings.TrimSpace(s.Value)
		sid := atoiSafe(s.ID)
		if title == "" || sid == 0 {
			continue
		}
		details.Similar = append(details.Similar, provider.SimilarAnime{
			ID:       sid,
			Title:    title,
			Approval: atoiSafe(s.Approval),
			Total:    atoiSafe(s.Total),
		})
	}

	for _, t := range doc.Tags {
		tid := atoiSafe(t.ID)
		name := strings.TrimSpace(t.Name)
		if tid == 0 || name == "" {
			continue
		}
		weight := atoiSafe(t.Weight)
		if weight < 0 || weight > 600 {
			weight = 0
		}
		details.Tags = append(details.Tags, provider.Tag{
			ID:          tid,
			Name:        name,
			Description: strings.TrimSpace(t.Description),
			Weight:      weight,
			Spoiler:     boolish(t.Spoiler),
		})
	}
	sort.SliceStable(details.Tags, func(i, j int) bool {
		return details.Tags[i].Weight > details.Tags[j].Weight
	})

	return details, nil
}

// pictureBaseURL prefixes the bare filenames the API returns in <picture>.
const pictureBaseURL = "https://cdn.anidb.net/images/main/"

// parseAPIError decodes data as an AniDB error document. Returns nil when
// the document is not an error.
func parseAPIError(data []byte) *apiErrorXML {
	var e apiErrorXML
	if err := xml.Unmarshal(data, &e); err != nil {
		return nil
	}
	e.Message = strings.TrimSpace(e.Message)
	return &e
}

// mainTitle picks the display title: the main-kind entry, else the first.
func mainTitle(titles []provider.Title) string {
	for _, t := range titles {
		if t.Kind == "main" {
			return t.Title
		}
	}
	if len(titles) > 0 {
		return titles[0].Title
	}
	return ""
}

func normalizeTitleKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "main", "primary":
		return "main"
	case "official", "formal":
		return "official"
	case "synonym", "alternative", "alt":
		return "synonym"
	case "short", "abbreviated":
		return "short"
	case "":
		return "unknown"
	default:
		return strings.ToLower(strings.TrimSpace(kind))
	}
}

// dateLayouts covers the formats observed in AniDB data, year-first before
// day-first so unambiguous inputs resolve the same way every time.
var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"02.01.2006",
	"02/01/2006",
	"2006",
}

// normalizeDate renders a date in any accepted layout as "2006-01-02".
// A bare year becomes January 1st of that year; unparseable input becomes
// the empty string.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func boolish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func textOr(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

func convertRatings(r *ratingsXML) *provider.Ratings {
	if r == nil {
		return nil
	}
	out := &provider.Ratings{
		Permanent: convertRating(r.Permanent),
		Temporary: convertRating(r.Temporary),
		Review:    convertRating(r.Review),
	}
	if out.Permanent == nil && out.Temporary == nil && out.Review == nil {
		return nil
	}
	return out
}

func convertRating(r *ratingXML) *provider.Rating {
	if r == nil {
		return nil
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
	if err != nil {
		return nil
	}
	return &provider.Rating{Score: score, Count: atoiSafe(r.Count)}
}
