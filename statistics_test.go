package lmdbm

// statistics_test.go implements tests for statistics.

import (
	"strings"
	"sync"
	"testing"
)

func TestStatisticsBasic(t *testing.T) {
	stats := NewStatistics()

	stats.RecordTick(TickerBytesWritten, 100)
	stats.RecordTick(TickerBytesWritten, 50)
	stats.RecordTick(TickerKeysWritten, 1)

	if got := stats.GetTickerCount(TickerBytesWritten); got != 150 {
		t.Errorf("TickerBytesWritten = %d, want 150", got)
	}
	if got := stats.GetTickerCount(TickerKeysWritten); got != 1 {
		t.Errorf("TickerKeysWritten = %d, want 1", got)
	}
}

func TestStatisticsSetTicker(t *testing.T) {
	stats := NewStatistics()

	stats.SetTickerCount(TickerBytesRead, 1000)
	if got := stats.GetTickerCount(TickerBytesRead); got != 1000 {
		t.Errorf("TickerBytesRead = %d, want 1000", got)
	}

	stats.SetTickerCount(TickerBytesRead, 500)
	if got := stats.GetTickerCount(TickerBytesRead); got != 500 {
		t.Errorf("TickerBytesRead = %d, want 500", got)
	}
}

func TestStatisticsHistogram(t *testing.T) {
	stats := NewStatistics()

	stats.MeasureTime(HistogramGetMicros, 100)
	stats.MeasureTime(HistogramGetMicros, 200)
	stats.MeasureTime(HistogramGetMicros, 300)

	data := stats.GetHistogramData(HistogramGetMicros)

	if data.Count != 3 {
		t.Errorf("Count = %d, want 3", data.Count)
	}
	if data.Sum != 600 {
		t.Errorf("Sum = %d, want 600", data.Sum)
	}
	if data.Min != 100 {
		t.Errorf("Min = %f, want 100", data.Min)
	}
	if data.Max != 300 {
		t.Errorf("Max = %f, want 300", data.Max)
	}
	if data.Average != 200 {
		t.Errorf("Average = %f, want 200", data.Average)
	}
}

func TestStatisticsReset(t *testing.T) {
	stats := NewStatistics()

	stats.RecordTick(TickerMapGrowths, 3)
	stats.MeasureTime(HistogramAttemptsPerWrite, 4)

	stats.Reset()

	if got := stats.GetTickerCount(TickerMapGrowths); got != 0 {
		t.Errorf("After reset, TickerMapGrowths = %d, want 0", got)
	}
	if data := stats.GetHistogramData(HistogramAttemptsPerWrite); data.Count != 0 {
		t.Errorf("After reset, histogram count = %d, want 0", data.Count)
	}

	stats.MeasureTime(HistogramAttemptsPerWrite, 2)
	if data := stats.GetHistogramData(HistogramAttemptsPerWrite); data.Min != 2 || data.Max != 2 {
		t.Errorf("After reset, min/max = %f/%f, want 2/2", data.Min, data.Max)
	}
}

func TestStatisticsConcurrent(t *testing.T) {
	stats := NewStatistics()

	const numGoroutines = 10
	const numOps = 1000

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for range numGoroutines {
		go func() {
			defer wg.Done()
			for range numOps {
				stats.RecordTick(TickerWriteAttempts, 1)
				stats.MeasureTime(HistogramWriteMicros, 100)
			}
		}()
	}

	wg.Wait()

	expected := uint64(numGoroutines * numOps)
	if got := stats.GetTickerCount(TickerWriteAttempts); got != expected {
		t.Errorf("TickerWriteAttempts = %d, want %d", got, expected)
	}
	if data := stats.GetHistogramData(HistogramWriteMicros); data.Count != expected {
		t.Errorf("Histogram count = %d, want %d", data.Count, expected)
	}
}

func TestStatisticsInvalidTypes(t *testing.T) {
	stats := NewStatistics()

	// Invalid ticker type should not panic
	stats.RecordTick(TickerEnumMax, 100)
	stats.RecordTick(-1, 100)
	_ = stats.GetTickerCount(TickerEnumMax)
	_ = stats.GetTickerCount(-1)

	// Invalid histogram type should not panic
	stats.MeasureTime(HistogramEnumMax, 100)
	stats.MeasureTime(-1, 100)
	_ = stats.GetHistogramData(HistogramEnumMax)
	_ = stats.GetHistogramData(-1)
}

func TestTickerTypeString(t *testing.T) {
	tests := []struct {
		ticker TickerType
		want   string
	}{
		{TickerKeysRead, "lmdbm.keys.read"},
		{TickerMapFull, "lmdbm.map.full"},
		{TickerMapGrowths, "lmdbm.map.growths"},
		{TickerCorruptValues, "lmdbm.corrupt.values"},
	}

	for _, tt := range tests {
		if got := tt.ticker.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.ticker, got, tt.want)
		}
	}

	if got := TickerEnumMax.String(); got != "unknown" {
		t.Errorf("TickerEnumMax.String() = %q, want 'unknown'", got)
	}
}

func TestHistogramTypeString(t *testing.T) {
	tests := []struct {
		histogram HistogramType
		want      string
	}{
		{HistogramGetMicros, "lmdbm.get.micros"},
		{HistogramWriteMicros, "lmdbm.write.micros"},
		{HistogramStoredValueBytes, "lmdbm.stored.value.bytes"},
	}

	for _, tt := range tests {
		if got := tt.histogram.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.histogram, got, tt.want)
		}
	}

	if got := HistogramEnumMax.String(); got != "unknown" {
		t.Errorf("HistogramEnumMax.String() = %q, want 'unknown'", got)
	}
}

func TestStatisticsString(t *testing.T) {
	stats := NewStatistics()

	stats.RecordTick(TickerBytesWritten, 12345)
	stats.MeasureTime(HistogramGetMicros, 100)

	str := stats.String()
	if !strings.Contains(str, "lmdbm.bytes.written : 12,345") {
		t.Errorf("String() missing ticker line:\n%s", str)
	}
	if !strings.Contains(str, "lmdbm.get.micros") || !strings.Contains(str, "Avg: 100.00") {
		t.Errorf("String() missing histogram:\n%s", str)
	}
	if strings.Contains(str, "lmdbm.map.full") {
		t.Errorf("String() lists a zero ticker:\n%s", str)
	}
}

func TestHistogramMinMax(t *testing.T) {
	stats := NewStatistics()

	stats.MeasureTime(HistogramGetMicros, 500)
	stats.MeasureTime(HistogramGetMicros, 100)
	stats.MeasureTime(HistogramGetMicros, 900)
	stats.MeasureTime(HistogramGetMicros, 200)

	data := stats.GetHistogramData(HistogramGetMicros)

	if data.Min != 100 {
		t.Errorf("Min = %f, want 100", data.Min)
	}
	if data.Max != 900 {
		t.Errorf("Max = %f, want 900", data.Max)
	}
}

func TestStatisticsEmptyHistogram(t *testing.T) {
	stats := NewStatistics()

	data := stats.GetHistogramData(HistogramGetMicros)

	if data.Count != 0 {
		t.Errorf("Empty histogram count = %d, want 0", data.Count)
	}
}
