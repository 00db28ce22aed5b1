package types

import (
	"encoding/xml"
	"strings"
)

// ErrorResponse is the error body returned to API clients. It renders as
// <error code="400">message</error> in XML and {"error":400,"message":"..."}
// in JSON.
type ErrorResponse struct {
	XMLName xml.Name `json:"-" xml:"error"`
	Code    int      `json:"error" xml:"code,attr"`
	Message string   `json:"message" xml:",chardata"`
}

// OutputFormat is the serialization chosen for an error body.
type OutputFormat string

const (
	FormatXML   OutputFormat = "xml"
	FormatJSON  OutputFormat = "json"
	FormatJSONP OutputFormat = "jsonp"
)

// ParseOutputFormat picks the error serialization from the format and
// callback query parameters. format is case-insensitive; anything other than
// json or jsonp means XML. A JSON request with a callback becomes JSONP.
func ParseOutputFormat(format, callback string) OutputFormat {
	switch OutputFormat(strings.ToLower(format)) {
	case FormatJSON, FormatJSONP:
		if callback != "" {
			return FormatJSONP
		}
		return FormatJSON
	default:
		return FormatXML
	}
}
