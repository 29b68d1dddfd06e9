package tools

import (
	"github.com/oapi-codegen/runtime"
)

// OriginalQKViewHash is the file hash sentinel addressing the uploaded bundle itself.
const OriginalQKViewHash = "qkview"

// pathParam renders a path segment the way generated OpenAPI clients do.
func pathParam(name, value string) (string, error) {
	return runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
}

// queryParam renders "name=value" with query escaping.
func queryParam(name, value string) (string, error) {
	return runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, value)
}

// qkviewPath builds "/qkviews/{id}" followed by the given literal segments.
func qkviewPath(id string, segments ...string) (string, error) {
	escaped, err := pathParam("qkview_id", id)
	if err != nil {
		return "", err
	}

	path := "/qkviews/" + escaped
	for _, s := range segments {
		path += "/" + s
	}
	return path, nil
}

// withQuery appends "?name=value" to path.
func withQuery(path, name, value string) (string, error) {
	q, err := queryParam(name, value)
	if err != nil {
		return "", err
	}
	return path + "?" + q, nil
}
