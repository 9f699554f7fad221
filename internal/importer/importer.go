package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bookstore-pos/internal/domain"
)

type ProductWriter interface {
	Save(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter loads a book catalog with the columns
// code,title,author,price,promotionCode,promotionValue. Only code, title and
// price are required; column order is taken from the header.
type CSVImporter struct {
	reader *csv.Reader
	writer ProductWriter
}

func NewCSVImporter(r io.Reader, w ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{reader: csvr, writer: w}
}

// Run upserts every data row and returns how many books were written.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"code", "title", "price"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing %q column", required)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		p, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if _, err := i.writer.Save(ctx, p); err != nil {
			return imported, fmt.Errorf("save book %q: %w", p.Code, err)
		}
		imported++
	}
	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		Code:          pick(record, index, "code"),
		Title:         pick(record, index, "title"),
		Author:        pick(record, index, "author"),
		PromotionCode: pick(record, index, "promotionCode"),
	}
	if p.Code == "" || p.Title == "" {
		return p, errors.New("code and title are required")
	}

	price, err := parseAmount(pick(record, index, "price"))
	if err != nil {
		return p, fmt.Errorf("price for %q: %w", p.Code, err)
	}
	p.Price = price

	if raw := pick(record, index, "promotionValue"); raw != "" {
		v, err := parsePromotion(raw)
		if err != nil {
			return p, fmt.Errorf("promotion value for %q: %w", p.Code, err)
		}
		p.PromotionValue = v
	}
	return p, nil
}

// parseAmount accepts whole đồng with optional thousands separators.
func parseAmount(raw string) (int64, error) {
	cleaned := strings.NewReplacer(",", "", ".", "", " ", "", "đ", "").Replace(raw)
	if cleaned == "" {
		return 0, errors.New("empty amount")
	}
	return strconv.ParseInt(cleaned, 10, 64)
}

// parsePromotion reads "10%" as the rate 0.1; plain numbers are kept as-is.
func parsePromotion(raw string) (float64, error) {
	if strings.HasSuffix(raw, "%") {
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(raw, "%")), 64)
		if err != nil {
			return 0, err
		}
		return v / 100, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
