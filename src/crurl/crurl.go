// Package crurl builds every URL the website links to, and holds the route
// regexes that recognize them.
package crurl

import (
	"net/url"
	"strings"

	"git.coderun.dev/coderun/coderun/src/config"
)

const AssetsPath = "/assets"

type Q struct {
	Name  string
	Value string
}

var baseUrl string

func init() {
	SetGlobalBaseUrl(config.Config.BaseUrl)
}

// SetGlobalBaseUrl changes the origin every built URL starts with. Called
// once at startup after the config overlay is applied, and by tests.
func SetGlobalBaseUrl(fullBaseUrl string) {
	baseUrl = strings.TrimRight(fullBaseUrl, "/")
}

func Url(path string, query []Q) string {
	result := baseUrl + "/" + trim(path)
	if q := encodeQuery(query); q != "" {
		result += "?" + q
	}
	return result
}

func AssetUrl(path string) string {
	return Url(AssetsPath+"/"+trim(path), nil)
}

func trim(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}

func encodeQuery(query []Q) string {
	result := url.Values{}
	for _, q := range query {
		result.Add(q.Name, q.Value)
	}
	return result.Encode()
}
