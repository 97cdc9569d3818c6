// Package ticket renders e-ticket documents for booking results and
// publishes them at their canonical download URL.
package ticket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/reference"

	"go.uber.org/zap"
)

// IncompleteBookingResultError means a booking result lacks fields the
// ticket needs. It indicates a bug upstream.
type IncompleteBookingResultError struct {
	Fields []string
}

func (e *IncompleteBookingResultError) Error() string {
	return fmt.Sprintf("incomplete booking result: missing %s", strings.Join(e.Fields, ", "))
}

// Check verifies that a booking result can be ticketed.
func Check(result *models.BookingResult) error {
	if result == nil {
		return &IncompleteBookingResultError{Fields: []string{"booking"}}
	}
	var missing []string
	if !result.Outcome.Valid() {
		missing = append(missing, "outcome")
	}
	if result.OrderID == "" {
		missing = append(missing, "order_id")
	}
	if result.Reference == "" {
		missing = append(missing, "reference")
	}
	if result.PrimaryCarrier == "" {
		missing = append(missing, "primary_carrier")
	}
	if len(result.Segments) == 0 {
		missing = append(missing, "segments")
	}
	if len(result.Travelers) == 0 {
		missing = append(missing, "travelers")
	}
	for _, t := range result.Travelers {
		if t.FirstName == "" || t.LastName == "" {
			missing = append(missing, "traveler_name")
			break
		}
	}
	if result.Price.Total == "" {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return &IncompleteBookingResultError{Fields: missing}
	}
	return nil
}

var fileNameReplacer = strings.NewReplacer("/", "_", `\`, "_")

// FileName is eticket_<REFERENCE>_<ORDER_ID>.pdf for every outcome. A path
// separator cannot live in one file name, so '/' and '\' become '_'; every
// other character of the reference and order id is kept.
func FileName(reference, orderID string) string {
	return fileNameReplacer.Replace(fmt.Sprintf("eticket_%s_%s.pdf", reference, orderID))
}

// URL builds the public download link <base>/bookings/<file>. The file name
// appears verbatim, so callers can substitute the reference and order id
// into the template themselves. Order ids from the provider are often
// already percent-encoded ("...Ap%2fAiY="); valid escapes are left as they
// are and only bytes that cannot appear in a path segment are encoded.
func URL(baseURL, reference, orderID string) string {
	return strings.TrimRight(baseURL, "/") + "/bookings/" + escapeSegment(FileName(reference, orderID))
}

func escapeSegment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(c)
		case c != '%' && segmentSafe(c):
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// segmentSafe reports the unreserved and sub-delim bytes of RFC 3986 plus
// ':' and '@'.
func segmentSafe(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("-._~!$&'()*+,;=:@", c) >= 0
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

type Generator struct {
	dir      *reference.Directory
	renderer Renderer
	store    ArtifactStore
	baseURL  string
	logger   *zap.Logger
}

func NewGenerator(dir *reference.Directory, renderer Renderer, store ArtifactStore, baseURL string, logger *zap.Logger) *Generator {
	if dir == nil {
		dir = reference.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		dir:      dir,
		renderer: renderer,
		store:    store,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// Issue renders and stores the ticket for a booking. A ticket that already
// exists is not rendered again, so repeated calls return the same artifact.
func (g *Generator) Issue(ctx context.Context, result *models.BookingResult) (*models.TicketArtifact, error) {
	if err := Check(result); err != nil {
		return nil, err
	}

	artifact := &models.TicketArtifact{
		OrderID:   result.OrderID,
		Reference: result.Reference,
		Outcome:   result.Outcome,
		FileName:  FileName(result.Reference, result.OrderID),
		URL:       URL(g.baseURL, result.Reference, result.OrderID),
	}

	exists, err := g.store.Exists(ctx, artifact.FileName)
	if err != nil {
		return nil, err
	}
	if exists {
		g.logger.Debug("Ticket already issued", zap.String("file", artifact.FileName))
		return artifact, nil
	}

	var buf bytes.Buffer
	if err := g.renderer.Render(&buf, NewDocument(result, g.dir)); err != nil {
		return nil, err
	}
	if err := g.store.Put(ctx, artifact.FileName, buf.Bytes()); err != nil && !errors.Is(err, ErrExists) {
		return nil, err
	}

	g.logger.Info("Ticket issued",
		zap.String("orderID", result.OrderID),
		zap.String("reference", result.Reference),
		zap.String("outcome", string(result.Outcome)),
		zap.String("url", artifact.URL),
	)
	return artifact, nil
}
