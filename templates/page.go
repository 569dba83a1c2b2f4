// Package templates renders the watchlist pages as templ components.
package templates

//go:generate templ generate

import (
	"fmt"
	"net/http"
	"net/url"

	"watchlist/pkg/models"

	"github.com/a-h/templ"
)

// Page carries the values every view can use. Owner is the first user row and
// drives the page heading whether or not anyone is logged in; Current is the
// session user and decides which controls are shown.
type Page struct {
	Owner   *models.User
	Current *models.User
	Flashes []string
}

// Authenticated reports whether the page is rendered for a logged-in user.
func (p Page) Authenticated() bool {
	return p.Current != nil
}

// OwnerName returns the display name used in the heading.
func (p Page) OwnerName() string {
	if p.Owner == nil {
		return ""
	}
	return p.Owner.Name
}

// CurrentName returns the logged-in user's display name.
func (p Page) CurrentName() string {
	if p.Current == nil {
		return ""
	}
	return p.Current.Name
}

func editURL(id uint) templ.SafeURL {
	return templ.URL(fmt.Sprintf("/movie/edit/%d", id))
}

func deleteURL(id uint) templ.SafeURL {
	return templ.URL(fmt.Sprintf("/movie/delete/%d", id))
}

func imdbURL(title string) templ.SafeURL {
	return templ.URL("https://www.imdb.com/find?q=" + url.QueryEscape(title))
}

var errorTitles = map[int]string{
	http.StatusBadRequest:          "400 - 请求无效",
	http.StatusNotFound:            "404 - 页面跑丢了",
	http.StatusInternalServerError: "500 - 服务器内部错误",
}

// errorTitle names the view for 400, 404 and 500. Other codes get the 500 text.
func errorTitle(status int) string {
	if title, ok := errorTitles[status]; ok {
		return title
	}
	return errorTitles[http.StatusInternalServerError]
}
