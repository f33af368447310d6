package geo

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"photocatalog/models"
	"photocatalog/repository"
)

// ImportStats summarizes one gazetteer import.
type ImportStats struct {
	Imported int
	Skipped  int
}

const importBatchSize = 1000

// gazetteer rows are tab-separated; fields are consumed by position
const (
	fieldGeonameID    = 0
	fieldName         = 1
	fieldASCIIName    = 2
	fieldLatitude     = 4
	fieldLongitude    = 5
	fieldFeatureClass = 6
	fieldFeatureCode  = 7
	fieldCountryCode  = 8
	fieldAdmin1       = 10
	fieldAdmin2       = 11
)

// minGazetteerFields is the minimum column count for a usable row
const minGazetteerFields = 9

// ImportGazetteer loads the tab-separated place dataset at path into the
// store. A non-empty locations table means a previous import succeeded and
// the whole step is skipped. Rows with too few fields or missing id/lat/lon
// are counted as skipped, never fatal. Cancellation stops the import between
// batches; whatever was inserted stays committed.
func ImportGazetteer(ctx context.Context, places *repository.PlaceRepository, path string) (*ImportStats, error) {
	count, err := places.Count()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		log.Printf("location dataset already loaded (%d places)", count)
		return &ImportStats{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gazetteer %s: %w", path, err)
	}
	defer f.Close()

	log.Printf("importing location data from %s, this may take a minute...", path)

	stats := &ImportStats{}
	batch := make([]models.Place, 0, importBatchSize)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	lineNum := 0
	for sc.Scan() {
		lineNum++
		if lineNum%100000 == 0 {
			log.Printf("  imported %d places (%d lines processed)...", stats.Imported, lineNum)
		}
		if ctx.Err() != nil {
			log.Printf("location import interrupted after %d lines", lineNum)
			break
		}

		place, ok := parseGazetteerLine(sc.Text())
		if !ok {
			stats.Skipped++
			continue
		}
		batch = append(batch, place)
		if len(batch) >= importBatchSize {
			if err := places.InsertBatch(batch); err != nil {
				return stats, err
			}
			stats.Imported += len(batch)
			batch = batch[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("failed to read gazetteer %s: %w", path, err)
	}

	if len(batch) > 0 {
		if err := places.InsertBatch(batch); err != nil {
			return stats, err
		}
		stats.Imported += len(batch)
	}

	log.Printf("location import complete: %d places imported, %d lines skipped", stats.Imported, stats.Skipped)
	return stats, nil
}

// parseGazetteerLine extracts one Place from a tab-separated row. Rows with
// fewer than minGazetteerFields fields or a missing id, latitude or
// longitude are rejected.
func parseGazetteerLine(line string) (models.Place, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < minGazetteerFields {
		return models.Place{}, false
	}

	id, err := strconv.ParseInt(strings.TrimSpace(fields[fieldGeonameID]), 10, 64)
	if err != nil || id == 0 {
		return models.Place{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[fieldLatitude]), 64)
	if err != nil {
		return models.Place{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[fieldLongitude]), 64)
	if err != nil {
		return models.Place{}, false
	}

	return models.Place{
		GeonameID:    id,
		Name:         fields[fieldName],
		ASCIIName:    fields[fieldASCIIName],
		Latitude:     lat,
		Longitude:    lon,
		FeatureClass: optField(fields, fieldFeatureClass),
		FeatureCode:  optField(fields, fieldFeatureCode),
		CountryCode:  optField(fields, fieldCountryCode),
		Admin1Code:   optField(fields, fieldAdmin1),
		Admin2Code:   optField(fields, fieldAdmin2),
	}, true
}

func optField(fields []string, i int) *string {
	if i >= len(fields) {
		return nil
	}
	v := strings.TrimSpace(fields[i])
	if v == "" {
		return nil
	}
	return &v
}
