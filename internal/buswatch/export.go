package buswatch

import (
	"fmt"
	"io"
	"time"

	"github.com/tkrajina/gpxgo/gpx"
)

// WriteGPX writes a snapshot as a GPX document with one waypoint per
// vehicle, so a result set can be opened in any GPS viewer.
func WriteGPX(w io.Writer, buses []Bus, line string) error {
	now := time.Now()
	doc := &gpx.GPX{
		Creator:     "buswatch",
		Name:        fmt.Sprintf("SPPO line %s", line),
		Description: fmt.Sprintf("Bus positions for line %s captured at %s", line, now.In(FeedTimezone).Format("2006-01-02 15:04:05")),
		Time:        &now,
	}

	for _, b := range buses {
		comment := fmt.Sprintf("linha %s, velocidade %s", b.Linha, b.Velocidade)
		if b.DistanceKm != nil {
			comment = fmt.Sprintf("%s, %.2f km away", comment, *b.DistanceKm)
		}
		doc.Waypoints = append(doc.Waypoints, gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  b.Lat,
				Longitude: b.Lon,
			},
			Timestamp: b.Time,
			Name:      b.Ordem,
			Comment:   comment,
		})
	}

	xmlBytes, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("error serializing GPX: %w", err)
	}
	if _, err := w.Write(xmlBytes); err != nil {
		return fmt.Errorf("error writing GPX: %w", err)
	}
	return nil
}
