package lmdbm

// statistics.go implements the Statistics interface for collecting store metrics.

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// TickerType represents different types of counters.
type TickerType int

const (
	// TickerKeysRead is the count of point lookups (Get, Has, Pop).
	TickerKeysRead TickerType = iota
	// TickerKeysFound is the count of point lookups that found the key.
	TickerKeysFound
	// TickerKeysNotFound is the count of point lookups that missed.
	TickerKeysNotFound
	// TickerKeysWritten is the count of keys put.
	TickerKeysWritten
	// TickerKeysDeleted is the count of keys deleted, including absent ones.
	TickerKeysDeleted
	// TickerBytesRead is the total stored bytes read from the engine.
	TickerBytesRead
	// TickerBytesWritten is the total stored bytes handed to the engine.
	TickerBytesWritten
	// TickerIterNext is the count of entries produced by iteration.
	TickerIterNext
	// TickerWriteAttempts is the count of write transactions attempted.
	TickerWriteAttempts
	// TickerMapFull is the count of write attempts rejected as map-full.
	TickerMapFull
	// TickerMapGrowths is the count of map size doublings.
	TickerMapGrowths
	// TickerGrowthFailures is the count of writes abandoned after the
	// attempt bound.
	TickerGrowthFailures
	// TickerSyncs is the count of Sync calls.
	TickerSyncs
	// TickerCorruptValues is the count of values that failed to decode.
	TickerCorruptValues

	// TickerEnumMax is the maximum ticker type for sizing arrays.
	TickerEnumMax
)

var tickerNames = [TickerEnumMax]string{
	"lmdbm.keys.read",
	"lmdbm.keys.found",
	"lmdbm.keys.notfound",
	"lmdbm.keys.written",
	"lmdbm.keys.deleted",
	"lmdbm.bytes.read",
	"lmdbm.bytes.written",
	"lmdbm.iter.next",
	"lmdbm.write.attempts",
	"lmdbm.map.full",
	"lmdbm.map.growths",
	"lmdbm.growth.failures",
	"lmdbm.syncs",
	"lmdbm.corrupt.values",
}

// String returns the name of the ticker type.
func (t TickerType) String() string {
	if t >= 0 && t < TickerEnumMax {
		return tickerNames[t]
	}
	return "unknown"
}

// HistogramType represents different types of histograms.
type HistogramType int

const (
	// HistogramGetMicros is the histogram for Get latency.
	HistogramGetMicros HistogramType = iota
	// HistogramWriteMicros is the histogram for write-class operation
	// latency, growth included.
	HistogramWriteMicros
	// HistogramAttemptsPerWrite is the histogram for write attempts per
	// write-class operation.
	HistogramAttemptsPerWrite
	// HistogramBytesPerWrite is the histogram for stored bytes per
	// write-class operation.
	HistogramBytesPerWrite
	// HistogramValueBytes is the histogram for caller value sizes before
	// the pipeline.
	HistogramValueBytes
	// HistogramStoredValueBytes is the histogram for value sizes after the
	// pipeline.
	HistogramStoredValueBytes

	// HistogramEnumMax is the maximum histogram type for sizing arrays.
	HistogramEnumMax
)

var histogramNames = [HistogramEnumMax]string{
	"lmdbm.get.micros",
	"lmdbm.write.micros",
	"lmdbm.attempts.per.write",
	"lmdbm.bytes.per.write",
	"lmdbm.value.bytes",
	"lmdbm.stored.value.bytes",
}

// String returns the name of the histogram type.
func (h HistogramType) String() string {
	if h >= 0 && h < HistogramEnumMax {
		return histogramNames[h]
	}
	return "unknown"
}

// HistogramData contains histogram statistics.
type HistogramData struct {
	Average float64
	Max     float64
	Min     float64
	Count   uint64
	Sum     uint64
}

// Statistics collects and reports store metrics.
type Statistics interface {
	// GetTickerCount returns the current value of a ticker.
	GetTickerCount(tickerType TickerType) uint64

	// RecordTick increments a ticker by count.
	RecordTick(tickerType TickerType, count uint64)

	// SetTickerCount sets the ticker to a specific value.
	SetTickerCount(tickerType TickerType, count uint64)

	// GetHistogramData returns histogram statistics.
	GetHistogramData(histogramType HistogramType) HistogramData

	// MeasureTime records a value to a histogram.
	MeasureTime(histogramType HistogramType, value uint64)

	// Reset clears all statistics.
	Reset()

	// String returns a formatted string of all statistics.
	String() string
}

// statisticsImpl is the default implementation of Statistics.
type statisticsImpl struct {
	tickers    [TickerEnumMax]atomic.Uint64
	histograms [HistogramEnumMax]histogramImpl
}

// histogramImpl is a lock-free min/max/sum/count histogram.
type histogramImpl struct {
	min   atomic.Uint64
	max   atomic.Uint64
	sum   atomic.Uint64
	count atomic.Uint64
}

func (h *histogramImpl) reset() {
	h.count.Store(0)
	h.sum.Store(0)
	h.max.Store(0)
	h.min.Store(^uint64(0))
}

// NewStatistics creates a new Statistics instance.
func NewStatistics() Statistics {
	s := &statisticsImpl{}
	for i := range s.histograms {
		s.histograms[i].reset()
	}
	return s
}

// GetTickerCount returns the current value of a ticker.
func (s *statisticsImpl) GetTickerCount(tickerType TickerType) uint64 {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return 0
	}
	return s.tickers[tickerType].Load()
}

// RecordTick increments a ticker by count.
func (s *statisticsImpl) RecordTick(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	s.tickers[tickerType].Add(count)
}

// SetTickerCount sets the ticker to a specific value.
func (s *statisticsImpl) SetTickerCount(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	s.tickers[tickerType].Store(count)
}

// GetHistogramData returns histogram statistics.
func (s *statisticsImpl) GetHistogramData(histogramType HistogramType) HistogramData {
	if histogramType < 0 || histogramType >= HistogramEnumMax {
		return HistogramData{}
	}

	h := &s.histograms[histogramType]
	count := h.count.Load()
	if count == 0 {
		return HistogramData{}
	}

	sum := h.sum.Load()
	return HistogramData{
		Count:   count,
		Sum:     sum,
		Min:     float64(h.min.Load()),
		Max:     float64(h.max.Load()),
		Average: float64(sum) / float64(count),
	}
}

// MeasureTime records a value to a histogram.
func (s *statisticsImpl) MeasureTime(histogramType HistogramType, value uint64) {
	if histogramType < 0 || histogramType >= HistogramEnumMax {
		return
	}

	h := &s.histograms[histogramType]
	h.count.Add(1)
	h.sum.Add(value)

	for {
		old := h.min.Load()
		if value >= old || h.min.CompareAndSwap(old, value) {
			break
		}
	}
	for {
		old := h.max.Load()
		if value <= old || h.max.CompareAndSwap(old, value) {
			break
		}
	}
}

// Reset clears all statistics.
func (s *statisticsImpl) Reset() {
	for i := range s.tickers {
		s.tickers[i].Store(0)
	}
	for i := range s.histograms {
		s.histograms[i].reset()
	}
}

// String returns a formatted string of all statistics.
func (s *statisticsImpl) String() string {
	var b strings.Builder

	b.WriteString("TICKERS:\n")
	for i := range TickerEnumMax {
		if count := s.GetTickerCount(i); count > 0 {
			b.WriteString("  " + i.String() + " : " + humanize.Comma(int64(count)) + "\n")
		}
	}

	b.WriteString("\nHISTOGRAMS:\n")
	for i := range HistogramEnumMax {
		data := s.GetHistogramData(i)
		if data.Count == 0 {
			continue
		}
		b.WriteString("  " + i.String() + " :\n")
		b.WriteString("    Count: " + humanize.Comma(int64(data.Count)) + "\n")
		b.WriteString("    Avg: " + strconv.FormatFloat(data.Average, 'f', 2, 64) + "\n")
		b.WriteString("    Min: " + strconv.FormatFloat(data.Min, 'f', 2, 64) + "\n")
		b.WriteString("    Max: " + strconv.FormatFloat(data.Max, 'f', 2, 64) + "\n")
	}
	return b.String()
}
