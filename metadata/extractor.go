package metadata

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Fields is the fixed typed record produced at the tag-extraction boundary.
// Values are kept as strings in the form the source file carried them;
// absent tags are nil. Consumers never see the underlying tag-naming scheme.
type Fields struct {
	DateTime     *string
	CameraModel  *string
	LensModel    *string
	ISO          *string
	FNumber      *string
	ExposureTime *string
	FocalLength  *string
	Orientation  *string
	GPS          *Position
}

// Position is a decoded GPS coordinate in decimal degrees.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Rational is one numerator/denominator component of a DMS triple.
type Rational struct {
	Num int64
	Den int64
}

// ParseError marks a structurally corrupt tag block. It is a recoverable
// per-file failure: the file is still cataloged as failed, never dropped.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("exif parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var exifMarker = []byte("Exif\x00\x00")

// markerProbeLimit bounds the search for the EXIF APP1 marker; the segment
// sits near the start of every format we catalog.
const markerProbeLimit = 128 * 1024

// Extractor reads EXIF tags from raw image bytes using goexif.
type Extractor struct{}

// NewExtractor returns a ready-to-use tag extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract decodes the tag block of one image. A file with no EXIF block at
// all yields an empty Fields and no error; a present but undecodable block
// yields a *ParseError.
func (e *Extractor) Extract(r io.Reader) (*Fields, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image bytes: %w", err)
	}

	probe := raw
	if len(probe) > markerProbeLimit {
		probe = probe[:markerProbeLimit]
	}
	if !bytes.Contains(probe, exifMarker) {
		return &Fields{}, nil
	}

	exifData, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	fields := &Fields{
		DateTime:     stringTag(exifData, exif.DateTimeOriginal, exif.DateTime),
		CameraModel:  stringTag(exifData, exif.Model),
		LensModel:    stringTag(exifData, exif.LensModel),
		ISO:          intTag(exifData, exif.ISOSpeedRatings),
		FNumber:      ratioTag(exifData, exif.FNumber),
		ExposureTime: exposureTag(exifData),
		FocalLength:  ratioTag(exifData, exif.FocalLength),
		Orientation:  intTag(exifData, exif.Orientation),
	}

	gps, err := gpsTag(exifData)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	fields.GPS = gps

	return fields, nil
}

// DMSToDecimal converts a degree/minute/second rational triple with a
// hemisphere reference into decimal degrees. Each component is divided as a
// rational before summing, so non-integer minute or second components keep
// their full precision.
func DMSToDecimal(dms [3]Rational, ref string) (float64, error) {
	vals := [3]float64{}
	for i, r := range dms {
		if r.Den == 0 {
			return 0, fmt.Errorf("zero denominator in DMS component %d", i)
		}
		vals[i] = float64(r.Num) / float64(r.Den)
	}
	dec := vals[0] + vals[1]/60.0 + vals[2]/3600.0
	if ref == "S" || ref == "W" {
		dec = -dec
	}
	return dec, nil
}

// stringTag returns the first present tag as a trimmed string
func stringTag(x *exif.Exif, names ...exif.FieldName) *string {
	for _, name := range names {
		tag, err := x.Get(name)
		if err != nil || tag == nil {
			continue
		}
		val, err := tag.StringVal()
		if err != nil {
			val = strings.Trim(tag.String(), `"`)
		}
		// values often carry trailing null terminators
		val = strings.TrimRight(strings.TrimSpace(val), "\x00")
		if val == "" {
			continue
		}
		return &val
	}
	return nil
}

// intTag renders an integer tag (ISO, orientation) as its decimal string
func intTag(x *exif.Exif, name exif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	v, err := tag.Int(0)
	if err != nil {
		return nil
	}
	s := strconv.Itoa(v)
	return &s
}

// ratioTag renders a rational tag (f-number, focal length) as a short
// decimal, e.g. "5.6" or "50"
func ratioTag(x *exif.Exif, name exif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		// sometimes stored as Int instead
		if v, errInt := tag.Int(0); errInt == nil {
			s := strconv.Itoa(v)
			return &s
		}
		return nil
	}
	s := strconv.FormatFloat(float64(num)/float64(den), 'f', -1, 64)
	return &s
}

// exposureTag formats the exposure time, preferring the 1/N fraction form
func exposureTag(x *exif.Exif) *string {
	tag, err := x.Get(exif.ExposureTime)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}

	if num == 1 && den > 1 {
		s := fmt.Sprintf("1/%d", den)
		return &s
	}

	val := float64(num) / float64(den)
	var s string
	if val >= 1.0 {
		s = fmt.Sprintf("%.1f", val)
	} else {
		s = fmt.Sprintf("%.4f", val)
	}
	return &s
}

// gpsTag decodes the latitude/longitude DMS triples when both are present.
// A missing hemisphere reference is treated as N/E; a present but malformed
// coordinate is a structural error.
func gpsTag(x *exif.Exif) (*Position, error) {
	latTag, err := x.Get(exif.GPSLatitude)
	if err != nil {
		return nil, nil
	}
	lonTag, err := x.Get(exif.GPSLongitude)
	if err != nil {
		return nil, nil
	}

	lat, err := dmsTagToDecimal(latTag, refTag(x, exif.GPSLatitudeRef))
	if err != nil {
		return nil, fmt.Errorf("malformed GPS latitude: %w", err)
	}
	lon, err := dmsTagToDecimal(lonTag, refTag(x, exif.GPSLongitudeRef))
	if err != nil {
		return nil, fmt.Errorf("malformed GPS longitude: %w", err)
	}
	return &Position{Latitude: lat, Longitude: lon}, nil
}

func refTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return ""
	}
	val, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(val)
}

func dmsTagToDecimal(tag *tiff.Tag, ref string) (float64, error) {
	var dms [3]Rational
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return 0, fmt.Errorf("DMS component %d: %w", i, err)
		}
		dms[i] = Rational{Num: num, Den: den}
	}
	return DMSToDecimal(dms, ref)
}
