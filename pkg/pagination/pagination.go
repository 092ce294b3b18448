// Package pagination implements offset-based paging shared by the list
// endpoints: query-parameter extraction, response envelopes, and
// self/next/previous navigation links.
package pagination

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds the page window requested by the client.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit and offset from the request's query string.
// Missing, non-numeric, or out-of-range values fall back to the defaults,
// and limit is capped at MaxLimit.
func FromContext(c echo.Context) Params {
	return Params{
		Limit:  clamp(atoiOr(c.QueryParam("limit"), DefaultLimit), 1, MaxLimit),
		Offset: clamp(atoiOr(c.QueryParam("offset"), 0), 0, int(^uint(0)>>1)),
	}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// Response is the envelope for paginated list bodies.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// SQL renders the window as a LIMIT/OFFSET clause.
func (p Params) SQL() string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", p.Limit, p.Offset)
}

// HasNext reports whether a further page exists given the total row count.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious reports whether the window starts past the first row.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset is the offset of the page after this one.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset is the offset of the page before this one, floored at zero
// so a short first page never produces a negative offset.
func (p Params) PreviousOffset() int {
	return clamp(p.Offset-p.Limit, 0, p.Offset)
}

// Link is one navigation entry in a list response.
type Link struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

func (p Params) pageURL(basePath string, offset int) string {
	return fmt.Sprintf("%s?offset=%d&limit=%d", basePath, offset, p.Limit)
}

// Links builds self, next, and previous navigation links for a list result.
// basePath is the request path, e.g. "/api/v1/proposals".
func (p Params) Links(basePath string, total int) []Link {
	links := []Link{{Relation: "self", URL: p.pageURL(basePath, p.Offset)}}
	if p.HasNext(total) {
		links = append(links, Link{Relation: "next", URL: p.pageURL(basePath, p.NextOffset())})
	}
	if p.HasPrevious() {
		links = append(links, Link{Relation: "previous", URL: p.pageURL(basePath, p.PreviousOffset())})
	}
	return links
}
