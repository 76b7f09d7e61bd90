package render

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/contentx"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("render").Funcs(template.FuncMap{
	"richText": richText,
}).ParseFS(templateFS, "templates/*.html"))

func richText(r *contentx.RichText) template.HTML {
	if r == nil {
		return ""
	}
	// CMS rich text is authored HTML and rendered as is.
	return template.HTML(r.HTML)
}

// templateRenderer renders a block with the named block template.
type templateRenderer string

// Render implements Renderer.
func (name templateRenderer) Render(b contentx.Block) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(name), b); err != nil {
		return "", errors.Wrapf(err, "failed to render %s", string(name))
	}
	return template.HTML(buf.String()), nil
}

func builtinRenderers() map[string]Renderer {
	return map[string]Renderer{
		contentx.TypeCityBlock:        templateRenderer(contentx.TypeCityBlock),
		contentx.TypeHeroBanner:       templateRenderer(contentx.TypeHeroBanner),
		contentx.TypeBlogElement:      templateRenderer(contentx.TypeBlogElement),
		contentx.TypeHeaderElement:    templateRenderer(contentx.TypeHeaderElement),
		contentx.TypeFooterElement:    templateRenderer(contentx.TypeFooterElement),
		contentx.TypeParagraphElement: templateRenderer(contentx.TypeParagraphElement),
	}
}

// Status is what the content area of a page shows.
type Status int

const (
	StatusContent Status = iota
	StatusNoResults
	StatusLoading
	StatusError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNoResults:
		return "no-results"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "content"
	}
}

// CityLink is one entry of the header navigation.
type CityLink struct {
	Title string
	Href  string
}

// PreviewScript enables the live preview client on a page.
type PreviewScript struct {
	SessionID  string
	SocketPath string
}

// PageData is everything the page document needs.
type PageData struct {
	Title       string
	Locale      string
	Mode        contentx.QueryMode
	SearchQuery string
	Cities      []CityLink
	Status      Status
	Grids       []RenderedGrid
	Preview     *PreviewScript
}

// Page writes a complete HTML document.
func Page(w io.Writer, data PageData) error {
	if data.Locale == "" {
		data.Locale = contentx.DefaultLocale
	}
	if err := templates.ExecuteTemplate(w, "page", data); err != nil {
		return errors.Wrap(err, "failed to render page")
	}
	return nil
}

// Content writes only the content area of a page. Live preview replaces the
// content area with this fragment.
func Content(w io.Writer, data PageData) error {
	if err := templates.ExecuteTemplate(w, "content", data); err != nil {
		return errors.Wrap(err, "failed to render content")
	}
	return nil
}

// StatusOf picks the content status for a plan and its fetch outcome.
func StatusOf(p Plan, pending bool, err error) Status {
	switch {
	case !p.Empty():
		return StatusContent
	case pending:
		return StatusLoading
	case err != nil:
		return StatusError
	default:
		return StatusNoResults
	}
}

// CityLinks builds the header navigation from city titles. Blank and
// repeated titles are dropped; order is kept.
func CityLinks(locale string, titles []string) []CityLink {
	if locale == "" {
		locale = contentx.DefaultLocale
	}

	seen := make(map[string]bool, len(titles))
	links := make([]CityLink, 0, len(titles))
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		links = append(links, CityLink{
			Title: title,
			Href:  "/" + locale + "/" + kebab(title) + "/",
		})
	}
	return links
}

func kebab(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
