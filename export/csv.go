package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"photocatalog/models"
	"photocatalog/repository"
)

// Options selects the export shape and destination. An empty Output gets a
// timestamped auto-generated filename.
type Options struct {
	Output     string
	ByDay      bool
	ByLocation bool
}

// Exporter writes catalog contents to delimited text files.
type Exporter struct {
	photos *repository.PhotoRepository
}

// NewExporter creates a new instance of Exporter
func NewExporter(photos *repository.PhotoRepository) *Exporter {
	return &Exporter{photos: photos}
}

// Export writes one CSV file per the selected grouping and returns the path
// it wrote to.
func (e *Exporter) Export(opts Options) (string, error) {
	output := opts.Output
	if output == "" {
		output = defaultFilename(opts, time.Now())
	}

	f, err := os.Create(output)
	if err != nil {
		return "", fmt.Errorf("failed to create export file %s: %w", output, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	switch {
	case opts.ByDay && opts.ByLocation:
		err = e.writeByDayLocation(w)
	case opts.ByDay:
		err = e.writeByDay(w)
	case opts.ByLocation:
		err = e.writeByLocation(w)
	default:
		err = e.writeAll(w)
	}
	if err != nil {
		return "", err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write export file %s: %w", output, err)
	}
	return output, nil
}

func defaultFilename(opts Options, now time.Time) string {
	stamp := now.Format("20060102_150405")
	switch {
	case opts.ByDay && opts.ByLocation:
		return fmt.Sprintf("photo_export_by_day_location_%s.csv", stamp)
	case opts.ByDay:
		return fmt.Sprintf("photo_export_by_day_%s.csv", stamp)
	case opts.ByLocation:
		return fmt.Sprintf("photo_export_by_location_%s.csv", stamp)
	default:
		return fmt.Sprintf("photo_export_%s.csv", stamp)
	}
}

func (e *Exporter) writeAll(w *csv.Writer) error {
	photos, err := e.photos.AllPhotos()
	if err != nil {
		return err
	}

	header := []string{
		"ID", "Filename", "Path", "DateTime", "Camera Model", "Lens Model",
		"ISO", "F-Number", "Exposure Time", "Focal Length", "Orientation",
		"GPS Latitude", "GPS Longitude", "Location", "Status", "Processed At",
		"Error Message",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range photos {
		if err := w.Write(photoRow(&photos[i])); err != nil {
			return err
		}
	}
	return nil
}

func photoRow(p *models.Photo) []string {
	return []string{
		strconv.FormatUint(uint64(p.ID), 10),
		p.Filename,
		p.Path,
		strOrEmpty(p.DateTime),
		strOrEmpty(p.CameraModel),
		strOrEmpty(p.LensModel),
		strOrEmpty(p.ISO),
		strOrEmpty(p.FNumber),
		strOrEmpty(p.ExposureTime),
		strOrEmpty(p.FocalLength),
		strOrEmpty(p.Orientation),
		floatOrEmpty(p.GPSLat),
		floatOrEmpty(p.GPSLon),
		strOrEmpty(p.Location),
		p.Status,
		time.Unix(p.ProcessedAt, 0).UTC().Format(time.RFC3339),
		strOrEmpty(p.ErrorMessage),
	}
}

func (e *Exporter) writeByDay(w *csv.Writer) error {
	groups, err := e.photos.GroupByDay()
	if err != nil {
		return err
	}
	if err := w.Write([]string{"Day", "Photo Count", "Filenames"}); err != nil {
		return err
	}
	for _, g := range groups {
		if err := w.Write([]string{g.Day, strconv.Itoa(g.PhotoCount), g.Filenames}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeByLocation(w *csv.Writer) error {
	groups, err := e.photos.GroupByLocation()
	if err != nil {
		return err
	}
	if err := w.Write([]string{"Location", "Photo Count", "Filenames"}); err != nil {
		return err
	}
	for _, g := range groups {
		if err := w.Write([]string{g.Location, strconv.Itoa(g.PhotoCount), g.Filenames}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeByDayLocation(w *csv.Writer) error {
	groups, err := e.photos.GroupByDayLocation()
	if err != nil {
		return err
	}
	if err := w.Write([]string{"Day", "Location", "Photo Count", "Filenames"}); err != nil {
		return err
	}
	for _, g := range groups {
		row := []string{g.Day, g.Location, strconv.Itoa(g.PhotoCount), g.Filenames}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
