package cbz

import (
	"bytes"
	"encoding/xml"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/slucky31/mycomicsmanager-api/pkg/models"
)

// ComicInfo is the metadata sidecar stored in every canonical archive.
type ComicInfo struct {
	XMLName         xml.Name `xml:"ComicInfo"`
	Title           string   `xml:"Title,omitempty"`
	Series          string   `xml:"Series,omitempty"`
	Volume          int      `xml:"Volume,omitempty"`
	Year            int      `xml:"Year,omitempty"`
	Month           int      `xml:"Month,omitempty"`
	Day             int      `xml:"Day,omitempty"`
	Writer          string   `xml:"Writer,omitempty"`
	Penciller       string   `xml:"Penciller,omitempty"`
	Colorist        string   `xml:"Colorist,omitempty"`
	Editor          string   `xml:"Editor,omitempty"`
	Tags            string   `xml:"Tags,omitempty"`
	Web             string   `xml:"Web,omitempty"`
	CommunityRating float64  `xml:"CommunityRating,omitempty"`
	PageCount       int      `xml:"PageCount,omitempty"`
	LanguageISO     string   `xml:"LanguageISO,omitempty"`
	GTIN            string   `xml:"GTIN,omitempty"`
	Price           float64  `xml:"Price,omitempty"`
}

// ParseComicInfo decodes a ComicInfo document.
func ParseComicInfo(r io.Reader) (*ComicInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	comicInfo := &ComicInfo{}
	err = xml.Unmarshal(b, comicInfo)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return comicInfo, nil
}

// Marshal encodes the sidecar with an XML declaration.
func (ci *ComicInfo) Marshal() ([]byte, error) {
	data, err := xml.MarshalIndent(ci, "", "  ")
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(data)
	return buf.Bytes(), nil
}

// Published returns the publication date, or nil when no year is set.
func (ci *ComicInfo) Published() *time.Time {
	if ci.Year <= 0 {
		return nil
	}
	month := time.Month(ci.Month)
	if month < time.January || month > time.December {
		month = time.January
	}
	day := ci.Day
	if day <= 0 {
		day = 1
	}
	published := time.Date(ci.Year, month, day, 0, 0, 0, 0, time.UTC)
	return &published
}

// FromComic builds the sidecar of a comic record.
func FromComic(comic *models.Comic) *ComicInfo {
	ci := &ComicInfo{
		Title:           comic.Title,
		Series:          comic.Series,
		Volume:          comic.Volume,
		Writer:          comic.Writer,
		Penciller:       comic.Penciller,
		Colorist:        comic.Colorist,
		Editor:          comic.Editor,
		Tags:            comic.Category,
		Web:             comic.URL,
		CommunityRating: comic.Review,
		PageCount:       comic.PageCount,
		LanguageISO:     comic.LanguageISO,
		GTIN:            comic.ISBN,
		Price:           comic.Price,
	}
	if comic.Published != nil {
		ci.Year = comic.Published.Year()
		ci.Month = int(comic.Published.Month())
		ci.Day = comic.Published.Day()
	}
	return ci
}

// ApplyTo seeds the metadata fields of comic. Empty sidecar values never
// overwrite what the record already has.
func (ci *ComicInfo) ApplyTo(comic *models.Comic) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	setString(&comic.Title, ci.Title)
	setString(&comic.Series, ci.Series)
	setString(&comic.Writer, ci.Writer)
	setString(&comic.Penciller, ci.Penciller)
	setString(&comic.Colorist, ci.Colorist)
	setString(&comic.Editor, ci.Editor)
	setString(&comic.Category, ci.Tags)
	setString(&comic.URL, ci.Web)
	setString(&comic.LanguageISO, ci.LanguageISO)
	setString(&comic.ISBN, ci.GTIN)

	if ci.Volume > 0 {
		comic.Volume = ci.Volume
	}
	if ci.CommunityRating != 0 {
		comic.Review = ci.CommunityRating
	}
	if ci.Price != 0 {
		comic.Price = ci.Price
	}
	if published := ci.Published(); published != nil {
		comic.Published = published
	}
}
