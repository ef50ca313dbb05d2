package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
)

// UnknownTotal marks a range whose total size is not yet known ("bytes a-b/*").
const UnknownTotal int64 = -1

const rangeUnit = "bytes "

// ContentRange is a parsed Content-Range header value.
//
// Two forms are accepted when parsing:
//
//	bytes <first>-<last>/<total>
//	bytes */<total>
//
// The second (SizeOnly) form reports the size of an object with no payload.
type ContentRange struct {
	First    int64
	Last     int64
	Total    int64
	SizeOnly bool
}

// ParseContentRange parses a Content-Range header value. Any other unit or
// shape is a malformed response.
func ParseContentRange(value string) (ContentRange, error) {
	malformed := func() (ContentRange, error) {
		return ContentRange{}, status.Malformed("invalid format for content-range header <%s>", value).Err()
	}

	rest, ok := strings.CutPrefix(value, rangeUnit)
	if !ok {
		return malformed()
	}

	span, total, ok := strings.Cut(rest, "/")
	if !ok {
		return malformed()
	}
	size, err := parseOffset(total)
	if err != nil {
		return malformed()
	}

	if span == "*" {
		return ContentRange{Total: size, SizeOnly: true}, nil
	}

	firstStr, lastStr, ok := strings.Cut(span, "-")
	if !ok {
		return malformed()
	}
	first, err := parseOffset(firstStr)
	if err != nil {
		return malformed()
	}
	last, err := parseOffset(lastStr)
	if err != nil || last < first || last >= size {
		return malformed()
	}

	return ContentRange{First: first, Last: last, Total: size}, nil
}

// parseOffset accepts only decimal digits; ParseInt alone would allow a sign.
func parseOffset(s string) (int64, error) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, fmt.Errorf("offset %q is not a decimal number", s)
	}
	return strconv.ParseInt(s, 10, 64)
}

// Length is the number of payload bytes the range describes.
func (r ContentRange) Length() int64 {
	if r.SizeOnly {
		return 0
	}
	return r.Last - r.First + 1
}

// String formats the range in header form. An UnknownTotal renders as "*",
// which is how intermediate upload chunks are described.
func (r ContentRange) String() string {
	total := "*"
	if r.Total != UnknownTotal {
		total = strconv.FormatInt(r.Total, 10)
	}
	if r.SizeOnly {
		return rangeUnit + "*/" + total
	}
	return fmt.Sprintf("%s%d-%d/%s", rangeUnit, r.First, r.Last, total)
}
