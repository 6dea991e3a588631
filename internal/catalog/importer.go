package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Importer turns a block of pasted supplier text into products. Suppliers
// paste listings copied from chat messages, so the input mixes three
// formats on a line-by-line basis:
//
//	# Periféricos (oferta octubre)     category header, suffix discarded
//	* Mouse Logitech - $25,50          marked product, comma decimal
//	Teclado, 40.00, Periféricos        plain CSV fallback
//
// A category header applies to every marked product below it until the next
// header. Lines matching none of the formats are skipped; a malformed line
// never aborts the batch.
type Importer struct {
	logger *zap.Logger
}

const (
	categoryMarker = "#"
	productMarker  = "*"
)

// productLineRe captures the name and the price of a marked product line:
// marker, name, " - $", amount. The amount may carry thousands dots and a
// decimal comma.
var productLineRe = regexp.MustCompile(`^\*\s*(.+?)\s*-\s*\$\s*([0-9][0-9.,]*)\s*$`)

func NewImporter(logger *zap.Logger) *Importer {
	return &Importer{logger: logger}
}

// Parse walks the text line by line and returns the emitted products.
// Each product gets an id from the strictly increasing sequence starting at
// nextID; the caller derives nextID from the max id already in the catalog
// so ids are never reused, even across repeated imports.
func (im *Importer) Parse(text string, nextID int64) []Product {
	currentCategory := DefaultCategory
	var products []Product

	lines := strings.Split(text, "\n")
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, categoryMarker) {
			if label := parseCategoryLabel(line); label != "" {
				currentCategory = label
			}
			continue
		}

		if m := productLineRe.FindStringSubmatch(line); m != nil {
			products = append(products, Product{
				ID:       nextID,
				Name:     m[1],
				PriceUsd: parsePrice(m[2]),
				Category: currentCategory,
			})
			nextID++
			continue
		}

		if strings.HasPrefix(line, productMarker) {
			// A marked line that does not scan as a product. Skip it, the
			// rest of the batch is still good.
			im.logger.Debug("skipping malformed product line", zap.String("line", line))
			continue
		}

		if p, ok := parseFallbackLine(line, nextID); ok {
			products = append(products, p)
			nextID++
			continue
		}

		im.logger.Debug("skipping unrecognized line", zap.String("line", line))
	}

	im.logger.Info("catalog import parsed",
		zap.Int("lines", len(lines)),
		zap.Int("products", len(products)))
	return products
}

// parseCategoryLabel extracts the label from a header line, discarding the
// marker and any trailing parenthesized supplier metadata.
func parseCategoryLabel(line string) string {
	label := strings.TrimSpace(strings.TrimLeft(line, categoryMarker+" "))
	if i := strings.Index(label, "("); i >= 0 {
		label = strings.TrimSpace(label[:i])
	}
	return label
}

// parseFallbackLine handles the plain comma-delimited format:
// "name, price[, category]". An unparseable price becomes 0 rather than
// dropping the line; a missing category falls back to the default, not to
// the current header.
func parseFallbackLine(line string, id int64) (Product, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return Product{}, false
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return Product{}, false
	}
	category := DefaultCategory
	if len(parts) >= 3 {
		if c := strings.TrimSpace(parts[2]); c != "" {
			category = c
		}
	}
	return Product{
		ID:       id,
		Name:     name,
		PriceUsd: parsePrice(strings.TrimSpace(parts[1])),
		Category: category,
	}, true
}

// parsePrice reads a supplier amount. Both "25,50" and "15.5" occur in the
// wild; when dots and a comma appear together the dots are thousands
// separators. Anything unparseable is 0.
func parsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
