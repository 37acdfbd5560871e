package services

import (
	"context"
	"fmt"
	"time"

	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/models"
	"github.com/entrans/backend/src/processors"
	"github.com/patrickmn/go-cache"
)

const (
	ckInvoiceLines      = "snapshot_invoice_lines"
	ckCustomerDirectory = "snapshot_customer_directory"
)

type invoiceServiceImpl struct {
	fetcher            RecordFetcher
	processor          processors.InvoiceProcessor
	snapshotCache      *cache.Cache
	linesSheetName     string
	directorySheetName string
}

func NewInvoiceService(
	fetcher RecordFetcher,
	processor processors.InvoiceProcessor,
	snapshotCache *cache.Cache,
	linesSheetName, directorySheetName string,
) InvoiceService {
	return &invoiceServiceImpl{
		fetcher:            fetcher,
		processor:          processor,
		snapshotCache:      snapshotCache,
		linesSheetName:     linesSheetName,
		directorySheetName: directorySheetName,
	}
}

// fetchSnapshots returns the two sheet snapshots, from cache when fresh.
// On a cache miss both sheets are fetched concurrently and either
// failure fails the whole call: aggregation never sees partial data.
func (s *invoiceServiceImpl) fetchSnapshots(ctx context.Context) ([]models.InvoiceLineRecord, []models.CustomerDirectoryRecord, error) {
	cachedLines, linesOK := s.snapshotCache.Get(ckInvoiceLines)
	cachedDirectory, dirOK := s.snapshotCache.Get(ckCustomerDirectory)
	if linesOK && dirOK {
		return cachedLines.([]models.InvoiceLineRecord), cachedDirectory.([]models.CustomerDirectoryRecord), nil
	}

	startTime := time.Now()

	var (
		lines     []models.InvoiceLineRecord
		directory []models.CustomerDirectoryRecord
		linesErr  error
		dirErr    error
	)

	done := make(chan struct{}, 2)
	go func() {
		lines, linesErr = s.fetcher.FetchInvoiceLines(ctx, s.linesSheetName)
		done <- struct{}{}
	}()
	go func() {
		directory, dirErr = s.fetcher.FetchCustomerDirectory(ctx, s.directorySheetName)
		done <- struct{}{}
	}()
	<-done
	<-done

	if linesErr != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, linesErr)
	}
	if dirErr != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, dirErr)
	}

	logger.L.Debug("Fetched sheet snapshots",
		"lines", len(lines),
		"directoryEntries", len(directory),
		"duration", time.Since(startTime))

	s.snapshotCache.Set(ckInvoiceLines, lines, cache.DefaultExpiration)
	s.snapshotCache.Set(ckCustomerDirectory, directory, cache.DefaultExpiration)
	return lines, directory, nil
}

func (s *invoiceServiceImpl) GetInvoicesForCaller(ctx context.Context, caller models.Caller) ([]models.Invoice, processors.AggregationStats, error) {
	lines, directory, err := s.fetchSnapshots(ctx)
	if err != nil {
		return nil, processors.AggregationStats{}, err
	}
	invoices, stats := s.processor.AggregateWithStats(lines, directory, caller)
	return invoices, stats, nil
}

// GetInvoiceByNumber resolves a single invoice from the same snapshot,
// applying the same visibility rule. A nil invoice with nil error means
// not found (or not visible to the caller, indistinguishable on purpose).
func (s *invoiceServiceImpl) GetInvoiceByNumber(ctx context.Context, caller models.Caller, invoiceNumber string) (*models.Invoice, error) {
	invoices, _, err := s.GetInvoicesForCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		if invoices[i].InvoiceNumber == invoiceNumber {
			return &invoices[i], nil
		}
	}
	return nil, nil
}

func (s *invoiceServiceImpl) InvalidateSnapshots() {
	s.snapshotCache.Delete(ckInvoiceLines)
	s.snapshotCache.Delete(ckCustomerDirectory)
}
