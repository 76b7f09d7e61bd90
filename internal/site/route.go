package site

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/letmevibethatforyou/contentx"
)

// ParseRoute maps a request URL to page parameters.
//
//	/CMS/Content/...,,<id>_<version>  version only
//	/preview?key=<key>&ver=<version>  contentKey and version
//	/search?query=<q>                 searchQuery
//	anything else                     url, with a trailing slash
func ParseRoute(u *url.URL) contentx.PageParams {
	path := u.Path
	q := u.Query()

	switch {
	case strings.Contains(path, "/CMS/Content") && strings.Contains(path, ",,"):
		segments := strings.Split(path, "/")
		parts := strings.Split(segments[len(segments)-1], "_")
		if len(parts) > 1 {
			return contentx.PageParams{Version: parts[len(parts)-1]}
		}
		return contentx.PageParams{}
	case path == "/preview" && q.Has("key"):
		return contentx.PageParams{ContentKey: q.Get("key"), Version: q.Get("ver")}
	case path == "/search":
		return contentx.PageParams{SearchQuery: q.Get("query")}
	}

	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return contentx.PageParams{URL: path}
}

// EditorContext reports the editor's draft token and whether the request
// is rendered inside the editor frame.
func EditorContext(r *http.Request) (token string, inEditor bool) {
	q := r.URL.Query()
	token = q.Get("preview_token")
	inEditor = token != "" || q.Has("epieditmode") || r.Header.Get("Sec-Fetch-Dest") == "iframe"
	return token, inEditor
}
